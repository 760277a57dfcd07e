package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LocalConfigFile holds per-machine overrides next to the main file.
const LocalConfigFile = "settings.local.cfg"

// sectionOrder is the order sections are written in.
var sectionOrder = []string{"Interpreter", "Server", "Network", "TLS", "Storage", "JWT", "Debug"}

// Config holds INI-style settings grouped by section.
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// Initialize loads the global configuration from configPath, creating the
// file with defaults when it does not exist. An empty path keeps the
// defaults in memory without touching the disk.
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = Load(configPath)
	})
	return err
}

// Load reads the configuration at filePath plus the optional
// settings.local.cfg in the same directory.
func Load(filePath string) (*Config, error) {
	c := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	c.createDefaultConfig()

	if filePath == "" {
		return c, nil
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := c.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return c, nil
	}

	if err := c.mergeFile(filePath); err != nil {
		return nil, err
	}

	localPath := filepath.Join(filepath.Dir(filePath), LocalConfigFile)
	if _, err := os.Stat(localPath); err == nil {
		if err := c.mergeFile(localPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", localPath, err)
		}
	}
	return c, nil
}

func (c *Config) mergeFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parse(file)
}

// parse merges key = value lines into the settings. Later values win.
func (c *Config) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			if c.settings[currentSection] == nil {
				c.settings[currentSection] = make(map[string]string)
			}
			continue
		}

		if strings.Contains(line, "=") && currentSection != "" {
			parts := strings.SplitN(line, "=", 2)
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			c.settings[currentSection][key] = value
		}
	}
	return scanner.Err()
}

func (c *Config) createDefaultConfig() {
	c.settings["Interpreter"] = map[string]string{
		"read_integers":       "false",
		"max_loop_iterations": "1000000",
		"run_timeout":         "10s",
		"max_source_kb":       "64",
	}

	c.settings["Server"] = map[string]string{
		"port":           "8080",
		"use_http2":      "false",
		"enable_auth":    "false",
		"cors_origins":   "*",
		"max_clients":    "100",
		"admin_user":     "admin",
		"admin_password": "",
	}

	c.settings["Network"] = map[string]string{
		"pong_timeout":        "60s",
		"write_wait_timeout":  "10s",
		"max_message_size_kb": "64",
	}

	c.settings["TLS"] = map[string]string{
		"enable_tls":           "false",
		"enable_letsencrypt":   "false",
		"domain":               "",
		"letsencrypt_email":    "",
		"cert_cache_dir":       "./certs",
		"cert_file":            "./certs/server.crt",
		"key_file":             "./certs/server.key",
		"self_signed":          "false",
		"https_port":           "8443",
		"force_https_redirect": "false",
	}

	c.settings["Storage"] = map[string]string{
		"database":    "minipl.db",
		"record_runs": "true",
	}

	c.settings["JWT"] = map[string]string{
		"secret_key":             "",
		"token_expiration_hours": "24",
	}

	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "minipl.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		"log_scanner":          "false",
		"log_parser":           "false",
		"log_interpreter":      "false",
		"log_database":         "false",
		"log_server":           "true",
		"log_websocket":        "false",
		"log_terminal":         "false",
		"log_auth":             "true",
		"log_security":         "true",
		"log_config":           "true",
		"log_general":          "true",
	}
}

func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	w.WriteString("; minipl configuration file\n")
	w.WriteString("; Generated automatically - modify with care\n")
	w.WriteString(";\n\n")

	written := make(map[string]bool)
	for _, section := range sectionOrder {
		c.writeSection(w, section)
		written[section] = true
	}

	var extra []string
	for section := range c.settings {
		if !written[section] {
			extra = append(extra, section)
		}
	}
	sort.Strings(extra)
	for _, section := range extra {
		c.writeSection(w, section)
	}

	return w.Flush()
}

func (c *Config) writeSection(w *bufio.Writer, section string) {
	settings, exists := c.settings[section]
	if !exists {
		return
	}
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "[%s]\n", section)
	for _, key := range keys {
		fmt.Fprintf(w, "%s = %s\n", key, settings[key])
	}
	w.WriteString("\n")
}

// String returns the raw value of section/key or defaultValue.
func (c *Config) String(section, key, defaultValue string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sectionMap, exists := c.settings[section]; exists {
		if value, exists := sectionMap[key]; exists {
			return value
		}
	}
	return defaultValue
}

// Set stores a value in memory; Save persists it.
func (c *Config) Set(section, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settings[section] == nil {
		c.settings[section] = make(map[string]string)
	}
	c.settings[section][key] = value
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	if c.filePath == "" {
		return fmt.Errorf("configuration has no file")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveToFile()
}

// GetString returns a string setting from the global configuration.
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}
	return globalConfig.String(section, key, defaultValue)
}

// GetInt returns an integer setting.
func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(str); err == nil {
		return value
	}
	return defaultValue
}

// GetFloat returns a float setting.
func GetFloat(section, key string, defaultValue float64) float64 {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := strconv.ParseFloat(str, 64); err == nil {
		return value
	}
	return defaultValue
}

// GetBool returns a boolean setting.
func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}
	return defaultValue
}

// GetDuration returns a duration setting such as "10s".
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(str); err == nil {
		return value
	}
	return defaultValue
}

// GetSection returns a copy of all key-value pairs of a section.
func GetSection(sectionName string) map[string]string {
	result := make(map[string]string)
	if globalConfig == nil {
		return result
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	for key, value := range globalConfig.settings[sectionName] {
		result[key] = value
	}
	return result
}

// SetString sets a value in the global configuration.
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}
	globalConfig.Set(section, key, value)
}

// Save persists the global configuration.
func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}
	return globalConfig.Save()
}
