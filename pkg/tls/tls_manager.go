package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antibyte/minipl/pkg/configuration"
	"github.com/antibyte/minipl/pkg/logger"

	"golang.org/x/crypto/acme/autocert"
)

// TLSManager provides the TLS setup of the playground server, either from
// Let's Encrypt or from certificate files.
type TLSManager struct {
	config      *TLSConfig
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
	initialized bool
}

// TLSConfig mirrors the [TLS] section.
type TLSConfig struct {
	EnableTLS          bool
	EnableLetsEncrypt  bool
	Domain             string
	LetsEncryptEmail   string
	CertCacheDir       string
	ForceHTTPSRedirect bool
	SelfSigned         bool
	CertFile           string
	KeyFile            string
	HTTPPort           string
	HTTPSPort          string
}

// LoadTLSConfig reads the [TLS] section. The plain HTTP port is the
// server port.
func LoadTLSConfig() *TLSConfig {
	return &TLSConfig{
		EnableTLS:          configuration.GetBool("TLS", "enable_tls", false),
		EnableLetsEncrypt:  configuration.GetBool("TLS", "enable_letsencrypt", false),
		Domain:             configuration.GetString("TLS", "domain", ""),
		LetsEncryptEmail:   configuration.GetString("TLS", "letsencrypt_email", ""),
		CertCacheDir:       configuration.GetString("TLS", "cert_cache_dir", "./certs"),
		ForceHTTPSRedirect: configuration.GetBool("TLS", "force_https_redirect", false),
		SelfSigned:         configuration.GetBool("TLS", "self_signed", false),
		CertFile:           configuration.GetString("TLS", "cert_file", "./certs/server.crt"),
		KeyFile:            configuration.GetString("TLS", "key_file", "./certs/server.key"),
		HTTPPort:           configuration.GetString("Server", "port", "8080"),
		HTTPSPort:          configuration.GetString("TLS", "https_port", "8443"),
	}
}

// NewTLSManager creates a manager from the global configuration.
func NewTLSManager() (*TLSManager, error) {
	return NewTLSManagerWithConfig(LoadTLSConfig())
}

// NewTLSManagerWithConfig validates config and prepares certificates when
// TLS is enabled.
func NewTLSManagerWithConfig(config *TLSConfig) (*TLSManager, error) {
	manager := &TLSManager{config: config}

	if err := manager.validateConfig(); err != nil {
		return nil, fmt.Errorf("TLS configuration validation failed: %w", err)
	}

	if config.EnableTLS {
		if err := manager.initializeTLS(); err != nil {
			return nil, fmt.Errorf("TLS initialization failed: %w", err)
		}
	}
	return manager, nil
}

func (tm *TLSManager) validateConfig() error {
	if !tm.config.EnableTLS {
		return nil
	}
	if tm.config.EnableLetsEncrypt {
		if strings.TrimSpace(tm.config.Domain) == "" {
			return fmt.Errorf("domain is required when Let's Encrypt is enabled")
		}
		if strings.TrimSpace(tm.config.LetsEncryptEmail) == "" {
			return fmt.Errorf("letsencrypt_email is required when Let's Encrypt is enabled")
		}
		if strings.Contains(tm.config.Domain, "example.com") {
			logger.SecurityWarn("using example domain %s", tm.config.Domain)
		}
		return nil
	}
	if tm.config.CertFile == "" || tm.config.KeyFile == "" {
		return fmt.Errorf("cert_file and key_file are required for manual TLS")
	}
	return nil
}

func (tm *TLSManager) initializeTLS() error {
	if tm.config.EnableLetsEncrypt {
		return tm.initializeLetsEncrypt()
	}
	return tm.initializeManualTLS()
}

func (tm *TLSManager) initializeLetsEncrypt() error {
	logger.Info(logger.AreaSecurity, "initializing Let's Encrypt for domain %s", tm.config.Domain)

	if err := os.MkdirAll(tm.config.CertCacheDir, 0700); err != nil {
		return fmt.Errorf("failed to create certificate cache directory: %w", err)
	}

	tm.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(tm.config.CertCacheDir),
		Prompt:     autocert.AcceptTOS,
		Email:      tm.config.LetsEncryptEmail,
		HostPolicy: autocert.HostWhitelist(tm.config.Domain, "www."+tm.config.Domain),
	}

	tm.tlsConfig = &tls.Config{
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			if hello.ServerName == "" {
				hello.ServerName = tm.config.Domain
			}
			cert, err := tm.autocertMgr.GetCertificate(hello)
			if err != nil {
				logger.SecurityWarn("failed to get certificate for %s: %v", hello.ServerName, err)
				return nil, err
			}
			return cert, nil
		},
		NextProtos: []string{"h2", "http/1.1"},
		MinVersion: tls.VersionTLS12,
	}

	tm.initialized = true
	logger.Info(logger.AreaSecurity, "Let's Encrypt TLS manager initialized")
	return nil
}

func (tm *TLSManager) initializeManualTLS() error {
	logger.Info(logger.AreaSecurity, "initializing manual TLS with cert %s, key %s", tm.config.CertFile, tm.config.KeyFile)

	if !fileExists(tm.config.CertFile) || !fileExists(tm.config.KeyFile) {
		if !tm.config.SelfSigned {
			return fmt.Errorf("certificate %s or key %s not found", tm.config.CertFile, tm.config.KeyFile)
		}
		if err := tm.GenerateSelfSignedCert(); err != nil {
			return err
		}
	}

	cert, err := tls.LoadX509KeyPair(tm.config.CertFile, tm.config.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}
	tm.tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS12,
	}
	tm.initialized = true
	logger.Info(logger.AreaSecurity, "manual TLS manager initialized")
	return nil
}

// GetTLSConfig returns the server TLS configuration, or nil when TLS is off.
func (tm *TLSManager) GetTLSConfig() *tls.Config {
	if !tm.initialized || !tm.config.EnableTLS {
		return nil
	}
	return tm.tlsConfig
}

// GetHTTPHandler returns the handler for the plain HTTP listener: ACME
// challenges with Let's Encrypt, otherwise the HTTPS redirect.
func (tm *TLSManager) GetHTTPHandler() http.Handler {
	redirect := tm.GetHTTPSRedirectHandler()
	if tm.autocertMgr != nil {
		return tm.autocertMgr.HTTPHandler(redirect)
	}
	return redirect
}

// NeedsHTTPServer reports whether a plain HTTP listener must run next to
// the HTTPS one.
func (tm *TLSManager) NeedsHTTPServer() bool {
	return tm.config.EnableTLS && (tm.config.EnableLetsEncrypt || tm.config.ForceHTTPSRedirect)
}

// GetHTTPSRedirectHandler redirects every request to the HTTPS port.
func (tm *TLSManager) GetHTTPSRedirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		httpsURL := "https://" + host
		if tm.config.HTTPSPort != "443" {
			httpsURL = fmt.Sprintf("https://%s:%s", host, tm.config.HTTPSPort)
		}
		http.Redirect(w, r, httpsURL+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// IsEnabled reports whether TLS is on.
func (tm *TLSManager) IsEnabled() bool {
	return tm.config.EnableTLS
}

func (tm *TLSManager) GetHTTPPort() string {
	return tm.config.HTTPPort
}

func (tm *TLSManager) GetHTTPSPort() string {
	return tm.config.HTTPSPort
}

func (tm *TLSManager) GetDomain() string {
	return tm.config.Domain
}

// GenerateSelfSignedCert writes a one-year ECDSA certificate for the
// configured domain (or localhost) to CertFile and KeyFile.
func (tm *TLSManager) GenerateSelfSignedCert() error {
	if tm.config.EnableLetsEncrypt {
		return fmt.Errorf("cannot generate self-signed certificate when Let's Encrypt is enabled")
	}
	logger.SecurityWarn("generating self-signed certificate at %s", tm.config.CertFile)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	host := tm.config.Domain
	if host == "" {
		host = "localhost"
	}
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"minipl"}, CommonName: host},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{host},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to encode key: %w", err)
	}

	if err := writePEM(tm.config.CertFile, "CERTIFICATE", der, 0644); err != nil {
		return err
	}
	return writePEM(tm.config.KeyFile, "EC PRIVATE KEY", keyDER, 0600)
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
