// Package providers fetches SAP logon credentials from a secrets store.
package providers

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/hashicorp/vault-client-go/schema"
	"github.com/sirupsen/logrus"
	"github.com/surajsub/sapgui-step-dsl/models"
)

type VaultConfig struct {
	Address    string `yaml:"address"`
	CACertPath string `yaml:"ca_cert_path"`
	MountPath  string `yaml:"mount_path"`
	PathPrefix string `yaml:"path_prefix"`
	RoleID     string `yaml:"role_id"`
	SecretID   string `yaml:"secret_id"`
}

// VaultSecretsProvider reads one KV v2 secret per SAP system, logged in through
// AppRole.
type VaultSecretsProvider struct {
	client     *vault.Client
	mountPath  string
	pathPrefix string
	logger     *logrus.Logger
}

func NewVaultSecretsProvider(ctx context.Context, cfg VaultConfig, logger *logrus.Logger) (*VaultSecretsProvider, error) {
	if cfg.RoleID == "" || cfg.SecretID == "" {
		return nil, errors.New("vault role_id and secret_id are required")
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}

	opts := []vault.ClientOption{
		vault.WithAddress(cfg.Address),
		vault.WithRequestTimeout(30 * time.Second),
	}
	if cfg.CACertPath != "" {
		tls := vault.TLSConfiguration{}
		tls.ServerCertificate.FromFile = cfg.CACertPath
		opts = append(opts, vault.WithTLS(tls))
	}
	client, err := vault.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	resp, err := client.Auth.AppRoleLogin(ctx,
		schema.AppRoleLoginRequest{
			RoleId:   cfg.RoleID,
			SecretId: cfg.SecretID,
		},
		vault.WithMountPath("approle"),
	)
	if err != nil {
		return nil, fmt.Errorf("vault login failed: %w", err)
	}
	if err := client.SetToken(resp.Auth.ClientToken); err != nil {
		return nil, fmt.Errorf("failed to set vault token: %w", err)
	}
	logger.WithField("address", cfg.Address).Info("Logged in to vault")

	return &VaultSecretsProvider{
		client:     client,
		mountPath:  cfg.MountPath,
		pathPrefix: cfg.PathPrefix,
		logger:     logger,
	}, nil
}

// GetCredentials reads the secret stored for system.
func (v *VaultSecretsProvider) GetCredentials(ctx context.Context, system string) (models.Credentials, error) {
	secretPath := path.Join(v.pathPrefix, system)
	secret, err := v.client.Secrets.KvV2Read(ctx, secretPath, vault.WithMountPath(v.mountPath))
	if err != nil {
		return models.Credentials{}, fmt.Errorf("failed to read credentials for %s: %w", system, err)
	}
	data := secret.Data.Data
	creds := models.Credentials{
		URL:      str(data, "url"),
		UserName: str(data, "username"),
		Password: str(data, "password"),
		Customer: str(data, "customer"),
		Service:  str(data, "service"),
	}
	if creds.UserName == "" {
		creds.UserName = str(data, "user")
	}
	if creds.UserName == "" || creds.Password == "" {
		return models.Credentials{}, fmt.Errorf("secret %s has no username or password", secretPath)
	}
	v.logger.WithField("system", system).Debug("Credentials loaded")
	return creds, nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
