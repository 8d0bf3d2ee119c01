package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/spf13/cobra"

	"github.com/dashborion/dashborion/internal/awsx"
	"github.com/dashborion/dashborion/internal/config"
	"github.com/dashborion/dashborion/internal/db/bunx"
	"github.com/dashborion/dashborion/internal/envelope"
	"github.com/dashborion/dashborion/internal/iam"
	"github.com/dashborion/dashborion/internal/repository"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access/refresh token pair for a user",
	Long: `Mints an opaque access token and its paired refresh token. The raw values
are printed exactly once; only hashes and encrypted metadata are stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		email := strings.ToLower(emailFlag)

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.AWS.KMSKeyID == "" {
			return fmt.Errorf("KMS_KEY_ID is required to mint tokens")
		}

		ctx := context.Background()

		awsCfg, err := awsx.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return err
		}
		envelopeSvc := envelope.NewService(
			envelope.NewKMSKeyProvider(kms.NewFromConfig(awsCfg), cfg.AWS.KMSKeyID))

		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		userRepo := repository.NewBunUserRepository(db)
		tokenRepo := repository.NewBunTokenRepository(db)
		sessionRepo := repository.NewBunSessionRepository(db)

		user, err := userRepo.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("failed to find user %q: %w", email, err)
		}
		if user.Disabled() {
			return fmt.Errorf("user %q is disabled", email)
		}

		issuer := iam.NewIssuer(tokenRepo, sessionRepo, envelopeSvc,
			cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, cfg.Auth.SessionTTL)

		pair, err := issuer.IssueTokens(ctx, user)
		if err != nil {
			return fmt.Errorf("failed to issue tokens: %w", err)
		}

		fmt.Println("Tokens issued. Store them now; they will not be shown again.")
		fmt.Println("----------------------------------------")
		fmt.Printf("Access token:        %s\n", pair.AccessToken)
		fmt.Printf("Access fingerprint:  %s\n", pair.AccessFingerprint)
		fmt.Printf("Access expires:      %s\n", pair.AccessExpiresAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("Refresh token:       %s\n", pair.RefreshToken)
		fmt.Printf("Refresh fingerprint: %s\n", pair.RefreshFingerprint)
		fmt.Printf("Refresh expires:     %s\n", pair.RefreshExpiresAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Println("----------------------------------------")

		return nil
	},
}
