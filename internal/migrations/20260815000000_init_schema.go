package migrations

import (
	"context"
	"fmt"

	"github.com/dashborion/dashborion/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260815000000, down_20260815000000)
}

// up_20260815000000 initializes the full database schema
func up_20260815000000(ctx context.Context, db *bun.DB) error {
	// 1. Create users table
	fmt.Print(" [up] creating users table...")
	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email)`)
	if err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}
	fmt.Println(" OK")

	// 2. Create grants table
	fmt.Print(" [up] creating grants table...")
	_, err = db.NewCreateTable().
		Model((*models.Grant)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create grants table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_grants_group_name ON grants(group_name)`)
	if err != nil {
		return fmt.Errorf("failed to create grants group_name index: %w", err)
	}
	fmt.Println(" OK")

	// 3. Create access_tokens table
	fmt.Print(" [up] creating access_tokens table...")
	_, err = db.NewCreateTable().
		Model((*models.AccessToken)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create access_tokens table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_access_tokens_hash ON access_tokens(token_hash)`)
	if err != nil {
		return fmt.Errorf("failed to create access_tokens hash index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_access_tokens_expires_at ON access_tokens(expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create access_tokens expires_at index: %w", err)
	}
	fmt.Println(" OK")

	// 4. Create refresh_tokens table
	fmt.Print(" [up] creating refresh_tokens table...")
	_, err = db.NewCreateTable().
		Model((*models.RefreshToken)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create refresh_tokens table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_refresh_tokens_hash ON refresh_tokens(token_hash)`)
	if err != nil {
		return fmt.Errorf("failed to create refresh_tokens hash index: %w", err)
	}

	// SQLite cannot add constraints after table creation; it relies on the
	// application-level FK plus PRAGMA foreign_keys instead.
	if IsPostgreSQL(db) {
		_, err = db.Exec(`
			ALTER TABLE refresh_tokens
			ADD CONSTRAINT fk_refresh_tokens_access_token_id
			FOREIGN KEY (access_token_id) REFERENCES access_tokens(id) ON DELETE CASCADE
		`)
		if err != nil {
			return fmt.Errorf("failed to add refresh_tokens access_token_id FK: %w", err)
		}
	}
	fmt.Println(" OK")

	// 5. Create web_sessions table
	fmt.Print(" [up] creating web_sessions table...")
	_, err = db.NewCreateTable().
		Model((*models.WebSession)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create web_sessions table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_web_sessions_hash ON web_sessions(token_hash)`)
	if err != nil {
		return fmt.Errorf("failed to create web_sessions hash index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_web_sessions_user_id ON web_sessions(user_id)`)
	if err != nil {
		return fmt.Errorf("failed to create web_sessions user_id index: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_web_sessions_expires_at ON web_sessions(expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create web_sessions expires_at index: %w", err)
	}

	if IsPostgreSQL(db) {
		_, err = db.Exec(`
			ALTER TABLE web_sessions
			ADD CONSTRAINT fk_web_sessions_user_id
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		`)
		if err != nil {
			return fmt.Errorf("failed to add web_sessions user_id FK: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}

// down_20260815000000 drops all tables in reverse dependency order
func down_20260815000000(ctx context.Context, db *bun.DB) error {
	tables := []string{
		"web_sessions",
		"refresh_tokens",
		"access_tokens",
		"grants",
		"users",
	}

	// SQLite has no DROP ... CASCADE; reverse dependency order covers it.
	suffix := ""
	if IsPostgreSQL(db) {
		suffix = " CASCADE"
	}

	for _, table := range tables {
		fmt.Printf(" [down] dropping %s table...", table)
		_, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s%s", table, suffix))
		if err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}

	return nil
}
