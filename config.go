package main

import (
	"fmt"
	"os"

	"github.com/surajsub/sapgui-step-dsl/models"
	"github.com/surajsub/sapgui-step-dsl/providers"
	"go.temporal.io/sdk/client"
	"gopkg.in/yaml.v3"
)

type CustomerConfig struct {
	Name      string `yaml:"name"`
	TaskQueue string `yaml:"task_queue"`
}

type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
}

type GitHubConfig struct {
	Owner   string   `yaml:"owner"`
	Repo    string   `yaml:"repo"`
	Labels  []string `yaml:"labels"`
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"-"`
}

// Config is the service configuration file. Secrets come from the environment.
type Config struct {
	Listen    string                 `yaml:"listen"`
	Strict    bool                   `yaml:"strict"`
	Temporal  TemporalConfig         `yaml:"temporal"`
	Customers []CustomerConfig       `yaml:"customers"`
	Vault     *providers.VaultConfig `yaml:"vault"`
	GitHub    *GitHubConfig          `yaml:"github"`
	Logging   models.LoggingConfig   `yaml:"logging"`
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}
	config.applyDefaults()
	config.applyEnv()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Temporal.HostPort == "" {
		c.Temporal.HostPort = client.DefaultHostPort
	}
	if c.Temporal.Namespace == "" {
		c.Temporal.Namespace = client.DefaultNamespace
	}
	if c.Logging.LogVerbosity == 0 {
		c.Logging.LogVerbosity = 4
	}
	for i, cust := range c.Customers {
		if cust.TaskQueue == "" {
			c.Customers[i].TaskQueue = "customer-task-queue-" + cust.Name
		}
	}
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("TEMPORAL_HOST_PORT"); ok {
		c.Temporal.HostPort = v
	}
	if c.Vault != nil {
		if v, ok := os.LookupEnv("ROLE_ID"); ok {
			c.Vault.RoleID = v
		}
		if v, ok := os.LookupEnv("SECRET_ID"); ok {
			c.Vault.SecretID = v
		}
		if v, ok := os.LookupEnv("VAULT_ADDR"); ok && c.Vault.Address == "" {
			c.Vault.Address = v
		}
	}
	if c.GitHub != nil {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
}

type dbEnv struct {
	user, password, name string
}

// databaseEnv reads the postgres credentials the server requires.
func databaseEnv() (dbEnv, error) {
	var env dbEnv
	for key, dst := range map[string]*string{
		"POSTGRES_DB_USER":     &env.user,
		"POSTGRES_DB_PASSWORD": &env.password,
		"POSTGRES_DB_NAME":     &env.name,
	} {
		v, ok := os.LookupEnv(key)
		if !ok {
			return env, fmt.Errorf("%s environment variable is not set", key)
		}
		*dst = v
	}
	return env, nil
}
