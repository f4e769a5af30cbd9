package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/AtRiskMedia/spabook-go/internal/application/startup"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

// serveCmd runs the web process
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the server-rendering web site",
	Long: `Run the web site on PORT. Sessions are verified against the
backend at BACKEND_URL once per request before any page loader runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LogChannelLevels = append(config.LogChannelLevels, channelLevels...)
		if err := startup.InitializeWeb(); err != nil {
			return err
		}
		log.Println("Web server has shut down gracefully.")
		return nil
	},
}

// apiCmd runs the backend process
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the identity and health backend",
	Long: `Run the backend on API_PORT. It stores staff identities in SQLite
(SQLITE_PATH) or Turso (TURSO_DATABASE_URL and TURSO_AUTH_TOKEN) and
seeds them from SEED_FILE when set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LogChannelLevels = append(config.LogChannelLevels, channelLevels...)
		if err := startup.InitializeAPI(); err != nil {
			return err
		}
		log.Println("API server has shut down gracefully.")
		return nil
	},
}
