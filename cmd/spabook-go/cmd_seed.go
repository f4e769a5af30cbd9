package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AtRiskMedia/spabook-go/internal/application/container"
	"github.com/AtRiskMedia/spabook-go/internal/application/startup"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

// seedCmd loads identities into the backend database
var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load staff identities from a YAML file",
	Long: `Load staff identities into the backend database. Identities whose
email already exists are left alone.

File format:
  identities:
    - email: host@example.com
      display_name: Host
      password: change-me
      role: staff`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	logger, err := startup.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	// seeding never issues sessions, so the secret is irrelevant
	apiContainer, err := container.NewAPIContainer(ctx, database.ConfigFromEnv(), config.JWTSecret, logger, startup.NewPerfTracker())
	if err != nil {
		return err
	}
	defer apiContainer.Close()

	added, err := apiContainer.IdentityService.SeedFromFile(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d identities into %s\n", added, apiContainer.DB.ConnectionInfo())
	return nil
}
