package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/poiesic/reviewpipe/storage"
)

// API is the subset of the Secrets Manager client used by SecretsManager.
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager implements storage.CredentialProvider on AWS Secrets Manager.
type SecretsManager struct {
	client API
	logger *slog.Logger
}

var _ storage.CredentialProvider = (*SecretsManager)(nil)

// NewSecretsManager wraps a Secrets Manager client.
func NewSecretsManager(client API) *SecretsManager {
	return &SecretsManager{
		client: client,
		logger: slog.Default().With("component", "secretsmanager"),
	}
}

// NewFromConfig builds a provider from an AWS configuration.
func NewFromConfig(cfg aws.Config) *SecretsManager {
	return NewSecretsManager(secretsmanager.NewFromConfig(cfg))
}

// GetSecret returns the string value of the named secret.
func (s *SecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", storage.ErrSecretNotFound, name)
		}
		s.logger.Error("get secret value failed", "secret", name, "err", err)
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", fmt.Errorf("%w: %s has no string value", storage.ErrSecretNotFound, name)
	}
	return *out.SecretString, nil
}

// Env implements storage.CredentialProvider on environment variables.
type Env struct {
	prefix string
	lookup func(string) (string, bool)
}

var _ storage.CredentialProvider = (*Env)(nil)

// NewEnv creates a provider reading variables named prefix + the upper-cased
// secret name with '-' and '.' replaced by '_'.
func NewEnv(prefix string) *Env {
	return &Env{prefix: prefix, lookup: os.LookupEnv}
}

// VariableName returns the environment variable consulted for name.
func (e *Env) VariableName(name string) string {
	r := strings.NewReplacer("-", "_", ".", "_", "/", "_")
	return e.prefix + strings.ToUpper(r.Replace(name))
}

// GetSecret returns the value of the variable mapped from name.
func (e *Env) GetSecret(ctx context.Context, name string) (string, error) {
	v, ok := e.lookup(e.VariableName(name))
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s (set %s)", storage.ErrSecretNotFound, name, e.VariableName(name))
	}
	return v, nil
}

// Cached memoizes successful lookups of another provider.
type Cached struct {
	next   storage.CredentialProvider
	mu     sync.Mutex
	values map[string]string
}

var _ storage.CredentialProvider = (*Cached)(nil)

// NewCached wraps next.
func NewCached(next storage.CredentialProvider) *Cached {
	return &Cached{next: next, values: make(map[string]string)}
}

// GetSecret returns a cached value or asks the wrapped provider.
func (c *Cached) GetSecret(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	v, ok := c.values[name]
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := c.next.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.values[name] = v
	c.mu.Unlock()
	return v, nil
}
