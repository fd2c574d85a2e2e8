package secretmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var (
	loadDefaultConfig       = config.LoadDefaultConfig
	newSecretsManagerClient = func(cfg aws.Config) secretsManagerAPI {
		return secretsmanager.NewFromConfig(cfg)
	}
)

const requestTimeout = 10 * time.Second

// GetSecret returns the string value of the named secret using the default
// AWS credential chain.
func GetSecret(name string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	cfg, err := loadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	output, err := newSecretsManagerClient(cfg).GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	if output.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}
	return *output.SecretString, nil
}
