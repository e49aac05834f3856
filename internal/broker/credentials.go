// Package broker hosts the collaborators the decision core talks to: the
// index tick feed, the option pricing service and the risk sizer, plus
// credential loading for them.
package broker

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	"options-scalper-bot/config"
)

// Credentials are the broker API credentials used by the tick feed and
// pricing clients.
type Credentials struct {
	APIKey      string
	AccessToken string
}

// LoadCredentials resolves broker credentials. When Vault is enabled they
// come from the configured secret path, otherwise from config/env.
func LoadCredentials(ctx context.Context, cfg config.BrokerConfig, vaultCfg config.VaultConfig) (*Credentials, error) {
	if !vaultCfg.Enabled {
		return &Credentials{APIKey: cfg.APIKey, AccessToken: cfg.AccessToken}, nil
	}

	vc := vault.DefaultConfig()
	vc.Address = vaultCfg.Address

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(vaultCfg.Token)

	secret, err := client.Logical().ReadWithContext(ctx, vaultCfg.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault secret %s: %w", vaultCfg.SecretPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault secret %s not found", vaultCfg.SecretPath)
	}

	data := secret.Data
	// KV v2 nests the payload under "data".
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	creds := &Credentials{}
	if v, ok := data["api_key"].(string); ok {
		creds.APIKey = v
	}
	if v, ok := data["access_token"].(string); ok {
		creds.AccessToken = v
	}
	if creds.APIKey == "" {
		return nil, fmt.Errorf("vault secret %s is missing api_key", vaultCfg.SecretPath)
	}
	return creds, nil
}
