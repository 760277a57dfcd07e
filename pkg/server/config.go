package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/antibyte/minipl/pkg/configuration"
)

// Config holds the [Server] and [Storage] settings of the playground.
type Config struct {
	Port        string
	UseHttp2    bool
	EnableAuth  bool
	RecordRuns  bool
	CorsOrigins []string
	MaxClients  int
}

// LoadConfig reads the server settings from the global configuration.
func LoadConfig() (*Config, error) {
	port := configuration.GetString("Server", "port", "8080")
	if err := validatePort(port); err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	return &Config{
		Port:        port,
		UseHttp2:    configuration.GetBool("Server", "use_http2", false),
		EnableAuth:  configuration.GetBool("Server", "enable_auth", false),
		RecordRuns:  configuration.GetBool("Storage", "record_runs", true),
		CorsOrigins: splitOrigins(configuration.GetString("Server", "cors_origins", "*")),
		MaxClients:  configuration.GetInt("Server", "max_clients", 100),
	}, nil
}

func splitOrigins(value string) []string {
	var origins []string
	for _, origin := range strings.Split(value, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}

func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return errors.New("port must be a number")
	}
	if portNum < 1 || portNum > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}
