// Package awsx builds AWS SDK configuration for a target account.
package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	costconfig "github.com/costlens/costlens/config"
)

// LoadConfig builds an aws.Config for the account. When a role ARN is
// set the default credentials assume it; otherwise they are used as-is.
func LoadConfig(ctx context.Context, account costconfig.Account) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(account.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if account.RoleARN != "" {
		stsClient := sts.NewFromConfig(cfg)
		cfg.Credentials = aws.NewCredentialsCache(
			stscreds.NewAssumeRoleProvider(stsClient, account.RoleARN),
		)
	}

	return cfg, nil
}
