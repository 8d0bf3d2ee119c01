package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"github.com/dashborion/dashborion/internal/awsx"
	"github.com/dashborion/dashborion/internal/config"
	"github.com/dashborion/dashborion/internal/db/bunx"
	"github.com/dashborion/dashborion/internal/envelope"
	"github.com/dashborion/dashborion/internal/iam"
	"github.com/dashborion/dashborion/internal/identity"
	"github.com/dashborion/dashborion/internal/repository"
	"github.com/dashborion/dashborion/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashborion server",
	Long:  `Starts the HTTP server with the authorization decision endpoint and the dashboard API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		awsCfg, err := awsx.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			return err
		}

		if cfg.AWS.SSMPrefix != "" {
			if err := config.ApplySSMOverlay(ctx, ssm.NewFromConfig(awsCfg), cfg.AWS.SSMPrefix, cfg); err != nil {
				return fmt.Errorf("apply parameter store overlay: %w", err)
			}
			log.Printf("Applied parameter store overlay from %s", cfg.AWS.SSMPrefix)
		}

		if cfg.AWS.KMSKeyID == "" {
			return fmt.Errorf("KMS_KEY_ID is required to serve")
		}

		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		// Initialize repositories
		userRepo := repository.NewBunUserRepository(db)
		grantRepo := repository.NewBunGrantRepository(db)
		tokenRepo := repository.NewBunTokenRepository(db)
		sessionRepo := repository.NewBunSessionRepository(db)

		// Envelope encryption backed by KMS
		envelopeSvc := envelope.NewService(
			envelope.NewKMSKeyProvider(kms.NewFromConfig(awsCfg), cfg.AWS.KMSKeyID))

		// Identity oracle verifier for signed proofs
		verifier := identity.NewCallerIdentityVerifier(identity.VerifierConfig{
			ServerID:        cfg.Auth.ServerID,
			AllowedAccounts: cfg.AWS.AllowedAccountIDs,
			Endpoint:        cfg.AWS.STSEndpoint,
		})

		resolver := iam.NewResolver(userRepo, grantRepo)

		// Authenticator order is trust order: an established session first,
		// then the stored bearer token, then upstream assertions, then the
		// signed identity proof.
		iamService := iam.NewService(
			iam.NewSessionAuthenticator(sessionRepo, userRepo, resolver, envelopeSvc),
			iam.NewBearerAuthenticator(tokenRepo, resolver, envelopeSvc,
				cfg.Auth.BearerCacheSize, cfg.Auth.BearerCacheTTL),
			iam.NewSSOAuthenticator(resolver),
			iam.NewProofAuthenticator(verifier, resolver),
		)

		issuer := iam.NewIssuer(tokenRepo, sessionRepo, envelopeSvc,
			cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, cfg.Auth.SessionTTL)

		clients := awsx.NewClientCache(awsCfg, cfg.AWS.AssumeRoleName)

		// Expired sessions are swept in the background so the table does not
		// accumulate rows that can never authenticate again.
		sweepCtx, cancelSweep := context.WithCancel(ctx)
		defer cancelSweep()
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n, err := sessionRepo.DeleteExpired(sweepCtx); err != nil {
						log.Printf("ERROR: session sweep failed: %v", err)
					} else if n > 0 {
						log.Printf("Swept %d expired sessions", n)
					}
				case <-sweepCtx.Done():
					return
				}
			}
		}()

		handler, err := server.NewH2CHandler(server.RouterOptions{
			IAMService: iamService,
			Issuer:     issuer,
			Users:      userRepo,
			Grants:     grantRepo,
			Sessions:   sessionRepo,
			Clients:    clients,
		})
		if err != nil {
			return fmt.Errorf("failed to build router: %w", err)
		}

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
