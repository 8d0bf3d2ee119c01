// Package awsx centralizes AWS client construction: the base SDK config and
// a small cache of cross-account configs derived from it via role assumption.
package awsx

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// LoadConfig builds the base AWS configuration. Region may be empty, in
// which case the SDK's own resolution chain applies.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// ClientCache hands out per-account AWS configs. The base config serves the
// home account; other accounts are reached by assuming a fixed-name role and
// the resulting config is cached so repeated calls do not rebuild the
// credential provider.
type ClientCache struct {
	base     aws.Config
	roleName string

	mu      sync.Mutex
	configs map[string]aws.Config
}

// NewClientCache builds a cache around a base config and the name of the
// role to assume in foreign accounts.
func NewClientCache(base aws.Config, roleName string) *ClientCache {
	return &ClientCache{
		base:     base,
		roleName: roleName,
		configs:  make(map[string]aws.Config),
	}
}

// ForAccount returns a config scoped to the given account. An empty account
// id returns the base config unchanged.
func (c *ClientCache) ForAccount(ctx context.Context, accountID string) (aws.Config, error) {
	if accountID == "" {
		return c.base, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg, ok := c.configs[accountID]; ok {
		return cfg, nil
	}

	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, c.roleName)
	stsClient := sts.NewFromConfig(c.base)
	provider := stscreds.NewAssumeRoleProvider(stsClient, roleARN)

	cfg := c.base.Copy()
	cfg.Credentials = aws.NewCredentialsCache(provider)

	// Verify the role is assumable before caching; a typo'd account should
	// fail loudly at first use, not on every later call.
	if _, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return aws.Config{}, fmt.Errorf("assume role in account %s: %w", accountID, err)
	}

	c.configs[accountID] = cfg
	return cfg, nil
}
