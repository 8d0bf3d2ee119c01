package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// StringList stores an ordered list of strings as JSON so the same model
// works on both supported dialects.
type StringList []string

// Scan implements sql.Scanner for reading from database
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan StringList: expected []byte or string, got %T", value)
	}
	return json.Unmarshal(bytes, l)
}

// Value implements driver.Valuer for writing to database
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	bytes, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// User represents a dashboard user account. Accounts are looked up on every
// SSO or identity-proof authentication: a disabled account denies access even
// when the upstream assertion is valid.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          string     `bun:"id,pk,type:uuid"`
	Email       string     `bun:"email,notnull,unique"`
	Name        string     `bun:"name"`
	Groups      StringList `bun:"groups,type:jsonb,notnull,default:'[]'"` // locally assigned groups, merged with asserted groups
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastLoginAt *time.Time `bun:"last_login_at"`
	DisabledAt  *time.Time `bun:"disabled_at"`
}

// Disabled reports whether the account has been switched off.
func (u *User) Disabled() bool {
	return u != nil && u.DisabledAt != nil
}

// Grant binds a group to a permission scope. A user's effective permission
// set is the union of the grants for every group they belong to.
type Grant struct {
	bun.BaseModel `bun:"table:grants,alias:g"`

	ID          string     `bun:"id,pk,type:uuid"`
	GroupName   string     `bun:"group_name,notnull"`
	Project     string     `bun:"project,notnull"` // may be the wildcard "*"
	Environment string     `bun:"environment,notnull"`
	Role        string     `bun:"role,notnull"`
	Resources   StringList `bun:"resources,type:jsonb"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	CreatedBy   string     `bun:"created_by,notnull"`
}

// AccessToken stores an opaque bearer token record. Only the SHA256 hash of
// the token is kept; the caller metadata is an envelope-encrypted blob bound
// to this record's hash prefix.
type AccessToken struct {
	bun.BaseModel `bun:"table:access_tokens,alias:at"`

	ID         string    `bun:"id,pk,type:uuid"`
	TokenHash  string    `bun:"token_hash,notnull,unique"`
	Ciphertext []byte    `bun:"ciphertext,notnull"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	LastUsedAt time.Time `bun:"last_used_at,notnull,default:current_timestamp"`
	Revoked    bool      `bun:"revoked,notnull,default:false"`
}

// RefreshToken pairs with an access token; its metadata blob is sealed under
// a separate purpose so the two ciphertexts are never interchangeable.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rt"`

	ID            string    `bun:"id,pk,type:uuid"`
	TokenHash     string    `bun:"token_hash,notnull,unique"`
	Ciphertext    []byte    `bun:"ciphertext,notnull"`
	AccessTokenID string    `bun:"access_token_id,notnull,type:uuid"` // FK to access_tokens(id)
	ExpiresAt     time.Time `bun:"expires_at,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	Revoked       bool      `bun:"revoked,notnull,default:false"`
}

// WebSession tracks a browser session. The session payload (asserted groups
// and the upstream ID token) is envelope-encrypted under the web-session
// purpose.
type WebSession struct {
	bun.BaseModel `bun:"table:web_sessions,alias:ws"`

	ID         string    `bun:"id,pk,type:uuid"`
	UserID     string    `bun:"user_id,notnull,type:uuid"` // FK to users(id)
	TokenHash  string    `bun:"token_hash,notnull,unique"`
	Ciphertext []byte    `bun:"ciphertext,notnull"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	LastUsedAt time.Time `bun:"last_used_at,notnull,default:current_timestamp"`
	Revoked    bool      `bun:"revoked,notnull,default:false"`
}
