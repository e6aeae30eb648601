// Package config loads pipeline configuration from a YAML file, with
// environment variable expansion and per-role credential fallback.
//
// Grounded on akashsharma95-artic-mirror/config/config.go for the
// yaml.v3 load shape and rolldone-data-splitter/internal/config/config.go
// for the os.Expand-over-raw-bytes pattern that lets config.yaml
// reference ${ENV_VAR} placeholders.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// TargetCloud selects which cloud dialect the Object-Store Gateway
// speaks for the target (Delta log) store.
type TargetCloud string

const (
	CloudAWS   TargetCloud = "aws"
	CloudAzure TargetCloud = "azure"
)

// Credentials holds the resolved secrets for one storage role (source or
// target). Fields not applicable to the selected cloud are left zero.
type Credentials struct {
	// AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string

	// Azure
	AccountName          string
	AccountKey           string
	TenantID             string
	ClientID             string
	ClientSecret         string
	BlobStorageAuthority string
	BlobStorageScheme    string
	DFSStorageAuthority  string
	DFSStorageScheme     string
	StorageContainer     string
}

// Config is the full pipeline configuration.
type Config struct {
	ManifestURI      string      `yaml:"manifest_uri"`
	TableNames       []string    `yaml:"table_names"`
	TargetCloud      TargetCloud `yaml:"target_cloud"`
	TargetTableURI   string      `yaml:"target_table_uri"`
	CheckpointEvery  int         `yaml:"checkpoint_interval"`
	Parallel         bool        `yaml:"parallel"`
	MaxWorkers       int         `yaml:"max_workers"`
	RequestTimeoutMS int         `yaml:"request_timeout_ms"`
	RetryCap         int         `yaml:"retry_cap"`
	ProgressUI       bool        `yaml:"progress_ui"`
	Reset            bool        `yaml:"reset"`
	LogLevel         string      `yaml:"log_level"`

	Source Credentials `yaml:"-"`
	Target Credentials `yaml:"-"`
}

// defaults applies spec §6's enumerated configuration defaults.
func (c *Config) defaults() {
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 100
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = defaultMaxWorkers()
	}
	if c.RequestTimeoutMS <= 0 {
		c.RequestTimeoutMS = 30_000
	}
	if c.RetryCap <= 0 {
		c.RetryCap = 5
	}
	if c.TargetCloud == "" {
		c.TargetCloud = CloudAWS
	}
}

func defaultMaxWorkers() int {
	if n, err := strconv.Atoi(os.Getenv("CDA_MAX_WORKERS")); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Load reads and parses a YAML config file at path, expanding
// ${ENV_VAR} placeholders from the process environment first, then
// resolves per-role credentials from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	expanded := os.Expand(string(data), os.Getenv)

	// parallel defaults to true when the YAML leaves it out.
	cfg := Config{Parallel: true}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if v := os.Getenv("SHOW_TABLE_PROGRESS"); v != "" {
		cfg.ProgressUI = v != "0"
	}

	cfg.defaults()

	cfg.Source, err = ResolveCredentials(cfg.TargetCloud, "SOURCE")
	if err != nil {
		return nil, fmt.Errorf("resolving source credentials: %w", err)
	}
	cfg.Target, err = ResolveCredentials(cfg.TargetCloud, "TARGET")
	if err != nil {
		return nil, fmt.Errorf("resolving target credentials: %w", err)
	}

	if cfg.ManifestURI == "" {
		return nil, fmt.Errorf("manifest_uri is required")
	}

	return &cfg, nil
}

// ResolveCredentials implements the documented fallback from
// original_source/guidewire/storage.py: role-prefixed environment
// variables (AWS_SOURCE_*/AWS_TARGET_*, AZURE_SOURCE_*/AZURE_TARGET_*)
// override the generic ones (AWS_*, AZURE_*).
func ResolveCredentials(cloud TargetCloud, role string) (Credentials, error) {
	switch cloud {
	case CloudAzure:
		return resolveAzureCredentials(role)
	default:
		return resolveAWSCredentials(role)
	}
}

func lookupWithFallback(prefix, suffix string) string {
	if v := os.Getenv("AWS_" + prefix + "_" + suffix); v != "" {
		return v
	}
	return os.Getenv("AWS_" + suffix)
}

func resolveAWSCredentials(role string) (Credentials, error) {
	region := lookupWithFallback(role, "REGION")
	accessKey := lookupWithFallback(role, "ACCESS_KEY_ID")
	secretKey := lookupWithFallback(role, "SECRET_ACCESS_KEY")
	endpoint := lookupWithFallback(role, "ENDPOINT_URL")

	var missing []string
	if region == "" {
		missing = append(missing, fmt.Sprintf("AWS_%s_REGION (or AWS_REGION)", role))
	}
	if accessKey == "" {
		missing = append(missing, fmt.Sprintf("AWS_%s_ACCESS_KEY_ID (or AWS_ACCESS_KEY_ID)", role))
	}
	if secretKey == "" {
		missing = append(missing, fmt.Sprintf("AWS_%s_SECRET_ACCESS_KEY (or AWS_SECRET_ACCESS_KEY)", role))
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("missing required AWS environment variables: %v", missing)
	}

	return Credentials{
		Region:          region,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		Endpoint:        endpoint,
	}, nil
}

func azureLookup(role, suffix string) string {
	if v := os.Getenv("AZURE_" + role + "_" + suffix); v != "" {
		return v
	}
	return os.Getenv("AZURE_" + suffix)
}

func resolveAzureCredentials(role string) (Credentials, error) {
	accountName := azureLookup(role, "STORAGE_ACCOUNT_NAME")
	if accountName == "" {
		return Credentials{}, fmt.Errorf("AZURE_%s_STORAGE_ACCOUNT_NAME (or AZURE_STORAGE_ACCOUNT_NAME) must be set", role)
	}

	return Credentials{
		AccountName:          accountName,
		AccountKey:           azureLookup(role, "STORAGE_ACCOUNT_KEY"),
		TenantID:             azureLookup(role, "TENANT_ID"),
		ClientID:             azureLookup(role, "CLIENT_ID"),
		ClientSecret:         azureLookup(role, "CLIENT_SECRET"),
		BlobStorageAuthority: azureLookup(role, "BLOB_STORAGE_AUTHORITY"),
		BlobStorageScheme:    orDefault(azureLookup(role, "BLOB_STORAGE_SCHEME"), "https"),
		DFSStorageAuthority:  azureLookup(role, "DFS_STORAGE_AUTHORITY"),
		DFSStorageScheme:     orDefault(azureLookup(role, "DFS_STORAGE_SCHEME"), "https"),
		StorageContainer:     azureLookup(role, "STORAGE_ACCOUNT_CONTAINER"),
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
