package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/telemetry-envelope/interfaces"
)

// SecretSource yields the shared secret. Every call returns a fresh slice
// the caller may scrub.
type SecretSource interface {
	Secret(ctx context.Context) ([]byte, error)
}

// Secret reference prefixes.
const (
	filePrefix  = "file:"
	envPrefix   = "env:"
	vaultPrefix = "vault:"
)

// ParseSecretSource interprets a secret reference:
//
//	file:/etc/telemetry/secret     file contents, trailing newline trimmed
//	env:TELEMETRY_SECRET           environment variable
//	vault:secret/telemetry#shared  field of a KV v2 secret (VAULT_ADDR, VAULT_TOKEN)
//	anything else                  the literal secret
func ParseSecretSource(ref string) (SecretSource, error) {
	switch {
	case strings.HasPrefix(ref, filePrefix):
		return FileSecret(strings.TrimPrefix(ref, filePrefix)), nil
	case strings.HasPrefix(ref, envPrefix):
		return EnvSecret(strings.TrimPrefix(ref, envPrefix)), nil
	case strings.HasPrefix(ref, vaultPrefix):
		return NewVaultSecret(strings.TrimPrefix(ref, vaultPrefix), nil)
	default:
		return LiteralSecret(ref), nil
	}
}

// LiteralSecret is a secret given inline.
type LiteralSecret string

func (s LiteralSecret) Secret(context.Context) ([]byte, error) {
	return []byte(s), nil
}

// FileSecret reads the secret from a file on every call.
type FileSecret string

func (s FileSecret) Secret(context.Context) ([]byte, error) {
	data, err := os.ReadFile(string(s))
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}
	return []byte(strings.TrimRight(string(data), "\r\n")), nil
}

// EnvSecret reads the secret from an environment variable.
type EnvSecret string

func (s EnvSecret) Secret(context.Context) ([]byte, error) {
	value, ok := os.LookupEnv(string(s))
	if !ok {
		return nil, fmt.Errorf("environment variable %s is not set", string(s))
	}
	return []byte(value), nil
}

// VaultSecret reads one field of a KV v2 secret.
type VaultSecret struct {
	client    *api.Client
	mountPath string
	dataPath  string
	field     string
}

// NewVaultSecret parses "<mount>/<path>#<field>". A nil client is created
// from the environment (VAULT_ADDR, VAULT_TOKEN).
func NewVaultSecret(ref string, client *api.Client) (*VaultSecret, error) {
	location, field, ok := strings.Cut(ref, "#")
	if !ok || field == "" {
		return nil, fmt.Errorf("%w: vault secret reference %q has no #field", interfaces.ErrConfig, ref)
	}

	mountPath, dataPath, ok := strings.Cut(strings.Trim(location, "/"), "/")
	if !ok || mountPath == "" || dataPath == "" {
		return nil, fmt.Errorf("%w: vault secret reference %q needs <mount>/<path>", interfaces.ErrConfig, ref)
	}

	if client == nil {
		var err error
		client, err = api.NewClient(api.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create Vault client: %w", err)
		}
	}

	return &VaultSecret{
		client:    client,
		mountPath: mountPath,
		dataPath:  strings.Trim(dataPath, "/"),
		field:     field,
	}, nil
}

var errVaultSecretMissing = errors.New("vault secret not found")

func (s *VaultSecret) Secret(ctx context.Context) ([]byte, error) {
	path := fmt.Sprintf("%s/data/%s", s.mountPath, s.dataPath)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", errVaultSecretMissing, path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response for %s", path)
	}
	value, ok := data[s.field].(string)
	if !ok {
		return nil, fmt.Errorf("%w: field %q in %s", errVaultSecretMissing, s.field, path)
	}

	return []byte(value), nil
}
