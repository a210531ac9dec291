// Package vault fetches the database password from HashiCorp Vault when a
// Vault address is configured. Without one, the configured password is used
// unchanged.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"
)

const (
	approleSecretIDPath = "auth/approle/role/%s/secret-id"
	approleLoginPath    = "auth/approle/login"
)

// ErrClientInit indicates failure to initialize the Vault API client.
var ErrClientInit = errors.New("vault client initialization failed")

// Client wraps the Vault API client.
type Client struct {
	api *vault.Client
}

// DatabaseSecret is the KV payload holding store credentials.
type DatabaseSecret struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// NewClient connects to Vault at address (VAULT_ADDR when empty) and logs in
// via AppRole when roleID and roleName are set, otherwise with a static token
// from VAULT_TOKEN.
func NewClient(ctx context.Context, address, roleID, roleName string) (*Client, error) {
	apiCfg := vault.DefaultConfig()
	if address != "" {
		apiCfg.Address = address
	}
	api, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}
	client := &Client{api: api}

	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		api.SetToken(token)
	}
	if roleID != "" && roleName != "" {
		if err := client.loginAppRole(ctx, roleID, roleName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
		}
	}
	return client, nil
}

func (c *Client) loginAppRole(ctx context.Context, roleID, roleName string) error {
	path := fmt.Sprintf(approleSecretIDPath, roleName)
	resp, err := c.api.Logical().WriteWithContext(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("generate secret_id: %w", err)
	}
	sid, ok := resp.Data["secret_id"].(string)
	if !ok || sid == "" {
		return fmt.Errorf("no secret_id returned from %s", path)
	}

	loginResp, err := c.api.Logical().WriteWithContext(ctx, approleLoginPath, map[string]any{
		"role_id":   roleID,
		"secret_id": sid,
	})
	if err != nil {
		return fmt.Errorf("approle login request: %w", err)
	}
	if loginResp.Auth == nil || loginResp.Auth.ClientToken == "" {
		return fmt.Errorf("no token in login response")
	}
	c.api.SetToken(loginResp.Auth.ClientToken)
	return nil
}

// DatabaseCredentials reads the store credentials from the KV path.
func (c *Client) DatabaseCredentials(ctx context.Context, kvPath string) (DatabaseSecret, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, kvPath)
	if err != nil {
		return DatabaseSecret{}, err
	}
	if secret == nil {
		return DatabaseSecret{}, fmt.Errorf("no data found at path: %s", kvPath)
	}
	data := secret.Data
	// KV v2 nests the payload under "data".
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}
	var creds DatabaseSecret
	if err := mapstructure.Decode(data, &creds); err != nil {
		return DatabaseSecret{}, fmt.Errorf("decode secret at %s: %w", kvPath, err)
	}
	if creds.Password == "" {
		return DatabaseSecret{}, fmt.Errorf("no password at path: %s", kvPath)
	}
	return creds, nil
}
