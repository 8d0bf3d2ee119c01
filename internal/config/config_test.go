package config

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_ID", "dashborion-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.ServerAddr)
	assert.Equal(t, "dashborion.db", cfg.DatabaseURL)
	assert.Empty(t, cfg.AWS.AllowedAccountIDs)
	assert.Equal(t, "dashborion-test", cfg.Auth.ServerID)
	assert.Equal(t, 1024, cfg.Auth.BearerCacheSize)
}

func TestLoad_RequiresServerID(t *testing.T) {
	t.Setenv("SERVER_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_ID")
}

func TestLoad_ParsesAllowedAccounts(t *testing.T) {
	t.Setenv("SERVER_ID", "dashborion-test")
	t.Setenv("ALLOWED_ACCOUNT_IDS", "111122223333, 444455556666")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"111122223333", "444455556666"}, cfg.AWS.AllowedAccountIDs)
}

func TestLoad_RejectsMalformedAccountID(t *testing.T) {
	t.Setenv("SERVER_ID", "dashborion-test")
	t.Setenv("ALLOWED_ACCOUNT_IDS", "12345")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "12-digit")
}

type fakeParameterFetcher struct {
	pages []*ssm.GetParametersByPathOutput
	calls int
}

func (f *fakeParameterFetcher) GetParametersByPath(_ context.Context, _ *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	out := f.pages[f.calls]
	f.calls++
	return out, nil
}

func TestApplySSMOverlay(t *testing.T) {
	cfg := &Config{}
	fetcher := &fakeParameterFetcher{
		pages: []*ssm.GetParametersByPathOutput{
			{
				Parameters: []types.Parameter{
					{Name: aws.String("/dashborion/prod/KMS_KEY_ID"), Value: aws.String("alias/dashborion")},
					{Name: aws.String("/dashborion/prod/unrelated"), Value: aws.String("ignored")},
				},
				NextToken: aws.String("page2"),
			},
			{
				Parameters: []types.Parameter{
					{Name: aws.String("/dashborion/prod/ALLOWED_ACCOUNT_IDS"), Value: aws.String("111122223333,444455556666")},
				},
			},
		},
	}

	require.NoError(t, ApplySSMOverlay(context.Background(), fetcher, "/dashborion/prod", cfg))
	assert.Equal(t, "alias/dashborion", cfg.AWS.KMSKeyID)
	assert.Equal(t, []string{"111122223333", "444455556666"}, cfg.AWS.AllowedAccountIDs)
	assert.Equal(t, 2, fetcher.calls)
}

func TestApplySSMOverlay_EmptyPrefixIsNoop(t *testing.T) {
	cfg := &Config{AWS: AWSConfig{KMSKeyID: "keep"}}
	require.NoError(t, ApplySSMOverlay(context.Background(), nil, "", cfg))
	assert.Equal(t, "keep", cfg.AWS.KMSKeyID)
}
