package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dashborion/dashborion/internal/config"
	"github.com/dashborion/dashborion/internal/db/bunx"
	"github.com/dashborion/dashborion/internal/repository"
)

var disableCmd = &cobra.Command{
	Use:   "disable <email>",
	Short: "Disable a user account and revoke its sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(args[0])

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		ctx := context.Background()
		userRepo := repository.NewBunUserRepository(db)
		sessionRepo := repository.NewBunSessionRepository(db)

		user, err := userRepo.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("failed to find user %q: %w", email, err)
		}

		if err := userRepo.Disable(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to disable user: %w", err)
		}
		if err := sessionRepo.RevokeAllForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}

		fmt.Printf("User %s disabled, sessions revoked\n", email)
		return nil
	},
}
