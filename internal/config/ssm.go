package config

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterFetcher is the slice of the SSM API the overlay needs.
type ParameterFetcher interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// ApplySSMOverlay replaces config fields with values stored under the given
// parameter store prefix. Parameter leaf names mirror the environment
// variable names, so /dashborion/prod/KMS_KEY_ID overrides KMS_KEY_ID.
// Unknown leaf names are ignored so unrelated parameters under the prefix do
// not break startup.
func ApplySSMOverlay(ctx context.Context, client ParameterFetcher, prefix string, cfg *Config) error {
	if prefix == "" {
		return nil
	}

	setters := map[string]func(string){
		"DATABASE_URL":        func(v string) { cfg.DatabaseURL = v },
		"SERVER_ADDR":         func(v string) { cfg.ServerAddr = v },
		"SERVER_URL":          func(v string) { cfg.ServerURL = v },
		"KMS_KEY_ID":          func(v string) { cfg.AWS.KMSKeyID = v },
		"STS_ENDPOINT":        func(v string) { cfg.AWS.STSEndpoint = v },
		"ALLOWED_ACCOUNT_IDS": func(v string) { cfg.AWS.AllowedAccountIDs = splitList(v) },
		"SERVER_ID":           func(v string) { cfg.Auth.ServerID = v },
	}

	var nextToken *string
	for {
		out, err := client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(prefix),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
			NextToken:      nextToken,
		})
		if err != nil {
			return fmt.Errorf("load parameters from %s: %w", prefix, err)
		}

		for _, p := range out.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			leaf := path.Base(strings.TrimSuffix(*p.Name, "/"))
			if set, ok := setters[leaf]; ok {
				set(*p.Value)
			}
		}

		if out.NextToken == nil {
			return nil
		}
		nextToken = out.NextToken
	}
}
