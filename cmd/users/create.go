package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dashborion/dashborion/internal/config"
	"github.com/dashborion/dashborion/internal/db/bunx"
	"github.com/dashborion/dashborion/internal/db/models"
	"github.com/dashborion/dashborion/internal/repository"
)

var (
	emailFlag  string
	nameFlag   string
	groupsFlag []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		if _, err := mail.ParseAddress(emailFlag); err != nil {
			return fmt.Errorf("invalid email format: %w", err)
		}
		email := strings.ToLower(emailFlag)

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

		existing, err := userRepo.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("user with email %q already exists", email)
		}

		now := time.Now()
		user := &models.User{
			ID:        bunx.NewUUIDv7(),
			Email:     email,
			Name:      nameFlag,
			Groups:    models.StringList(groupsFlag),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Println("User created successfully!")
		fmt.Println("----------------------------------------")
		fmt.Printf("User ID: %s\n", user.ID)
		fmt.Printf("Email: %s\n", user.Email)
		if user.Name != "" {
			fmt.Printf("Name: %s\n", user.Name)
		}
		if len(user.Groups) > 0 {
			fmt.Printf("Groups: %s\n", strings.Join(user.Groups, ", "))
		}
		fmt.Println("----------------------------------------")

		return nil
	},
}
