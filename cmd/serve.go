package cmd

import (
	"fmt"

	"github.com/antibyte/minipl/pkg/configuration"
	"github.com/antibyte/minipl/pkg/logger"
	"github.com/antibyte/minipl/pkg/server"
	"github.com/antibyte/minipl/pkg/shared"
	tlsmanager "github.com/antibyte/minipl/pkg/tls"

	"github.com/spf13/cobra"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playground server",
	Long: `Start the playground server: a JSON API for running programs, the run
history and a WebSocket terminal at /ws. Settings come from the [Server],
[Network], [TLS], [Storage] and [JWT] sections.`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port, overrides [Server] port")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	if servePort != "" {
		configuration.SetString("Server", "port", servePort)
	}
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	adminUser := configuration.GetString("Server", "admin_user", "admin")
	if err := st.EnsureAdmin(adminUser, configuration.GetString("Server", "admin_password", "")); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	tlsMgr, err := tlsmanager.NewTLSManager()
	if err != nil {
		return err
	}

	s := server.NewServer(cfg, st, shared.LoadRunSettings(), tlsMgr)
	port := cfg.Port
	if tlsMgr.IsEnabled() {
		port = tlsMgr.GetHTTPSPort()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "minipl playground listening on :%s\n", port)
	logger.ServerInfo("starting playground, auth enabled: %v", cfg.EnableAuth)
	return s.Start()
}
