package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"vedtak/internal/config"

	"github.com/hashicorp/vault/api"
)

// Secret keys read from the service's KV entry
const (
	KeyDBPassword       = "db_password"
	KeyAuthPublicKey    = "auth_public_key"
	KeyIntegrationToken = "integration_token"
)

// ErrSecretNotFound is returned when the KV entry or key does not exist
var ErrSecretNotFound = errors.New("secret not found")

// Client wraps HashiCorp Vault's KV v2 API
type Client struct {
	client *api.Client
	mount  string
	path   string
}

// NewClient creates a new Vault client
func NewClient(cfg *config.VaultConfig) (*Client, error) {
	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	mount := cfg.KVMount
	if mount == "" {
		mount = "secret"
	}
	return &Client{client: client, mount: mount, path: cfg.SecretPath}, nil
}

// ReadSecrets returns every string value stored at the service's KV path
func (c *Client) ReadSecrets(ctx context.Context) (map[string]string, error) {
	secret, err := c.client.KVv2(c.mount).Get(ctx, c.path)
	if err != nil {
		if errors.Is(err, api.ErrSecretNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrSecretNotFound, c.mount, c.path)
		}
		return nil, fmt.Errorf("failed to read secret %s/%s: %w", c.mount, c.path, err)
	}

	out := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

// ReadSecret returns one key of the service's KV entry
func (c *Client) ReadSecret(ctx context.Context, key string) (string, error) {
	secrets, err := c.ReadSecrets(ctx)
	if err != nil {
		return "", err
	}
	v, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("%w: key %s", ErrSecretNotFound, key)
	}
	return v, nil
}

// HealthCheck checks that Vault is reachable and unsealed
func (c *Client) HealthCheck(ctx context.Context) error {
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

// SecretReader is satisfied by Client
type SecretReader interface {
	ReadSecrets(ctx context.Context) (map[string]string, error)
}

// ApplySecrets overlays the database password, token verification key and
// service token from Vault onto cfg. Keys missing in Vault keep the value
// from the environment.
func ApplySecrets(ctx context.Context, cfg *config.Config, reader SecretReader) error {
	secrets, err := reader.ReadSecrets(ctx)
	if err != nil {
		return err
	}

	applied := 0
	if v := secrets[KeyDBPassword]; v != "" {
		cfg.Database.Password = v
		applied++
	}
	if v := secrets[KeyAuthPublicKey]; v != "" {
		cfg.Auth.PublicKeyPEM = v
		applied++
	}
	if v := secrets[KeyIntegrationToken]; v != "" {
		cfg.Integrations.Token = v
		applied++
	}
	slog.Info("Secrets loaded from Vault", "applied", applied)
	return nil
}
