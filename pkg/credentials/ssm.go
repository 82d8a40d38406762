package credentials

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// parameterAPI is the slice of the SSM client the secret store needs.
type parameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ssmSecretStore resolves job-user login secrets from SSM SecureString
// parameters, signed with the worker's rotatable credentials.
type ssmSecretStore struct {
	client parameterAPI
}

// NewSSMSecretStore builds a SecretStore over AWS Systems Manager
// Parameter Store. Requests are signed via the worker credentials store,
// so rotation is picked up without rebuilding the client.
func NewSSMSecretStore(ctx context.Context, store *Store, region string) (SecretStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(store),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for secret store: %w", err)
	}
	return &ssmSecretStore{client: ssm.NewFromConfig(cfg)}, nil
}

// GetSecret fetches and decrypts one parameter. Errors propagate
// unchanged; retry policy belongs to the caller's control-plane client.
func (s *ssmSecretStore) GetSecret(ctx context.Context, ref string) ([]byte, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(ref),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("secret %s has no value", ref)
	}
	return []byte(*out.Parameter.Value), nil
}
