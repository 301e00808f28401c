package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretProvider resolves named credentials (vendor connection strings,
// API keys). The deployment environment decides the backing store.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvSecretProvider reads secrets from environment variables, uppercasing
// the name: "chat_vendor_connection" -> "SECRET_CHAT_VENDOR_CONNECTION".
type EnvSecretProvider struct{}

func NewEnvSecretProvider() SecretProvider {
	return &EnvSecretProvider{}
}

func (p *EnvSecretProvider) GetSecret(_ context.Context, name string) (string, error) {
	key := "SECRET_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", fmt.Errorf("secret %s not configured", name)
}
