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

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		userRepo := repository.NewBunUserRepository(db)
		users, err := userRepo.List(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		if len(users) == 0 {
			fmt.Println("No users found")
			return nil
		}

		for _, user := range users {
			status := "active"
			if user.Disabled() {
				status = "disabled"
			}
			fmt.Printf("%s  %s  [%s]  groups=%s\n",
				user.ID, user.Email, status, strings.Join(user.Groups, ","))
		}
		return nil
	},
}
