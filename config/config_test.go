package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cda-delta-clone/config"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	setEnv(t, map[string]string{
		"AWS_ACCESS_KEY_ID":     "key",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"AWS_REGION":            "us-east-1",
	})
	path := writeConfigFile(t, "manifest_uri: s3://bucket/manifest.json\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.CheckpointEvery)
	assert.Equal(t, 5, cfg.RetryCap)
	assert.Equal(t, 30_000, cfg.RequestTimeoutMS)
	assert.Equal(t, config.CloudAWS, cfg.TargetCloud)
	assert.Equal(t, "key", cfg.Source.AccessKeyID)
	assert.Equal(t, "key", cfg.Target.AccessKeyID)
}

func TestLoadPrefersRolePrefixedCredentials(t *testing.T) {
	setEnv(t, map[string]string{
		"AWS_ACCESS_KEY_ID":            "generic",
		"AWS_SECRET_ACCESS_KEY":        "generic-secret",
		"AWS_REGION":                   "us-east-1",
		"AWS_SOURCE_ACCESS_KEY_ID":     "source-key",
		"AWS_SOURCE_SECRET_ACCESS_KEY": "source-secret",
		"AWS_SOURCE_REGION":            "us-west-2",
	})
	path := writeConfigFile(t, "manifest_uri: s3://bucket/manifest.json\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "source-key", cfg.Source.AccessKeyID)
	assert.Equal(t, "us-west-2", cfg.Source.Region)
	assert.Equal(t, "generic", cfg.Target.AccessKeyID)
}

func TestLoadExpandsEnvVarsInYAML(t *testing.T) {
	setEnv(t, map[string]string{
		"AWS_ACCESS_KEY_ID":     "key",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"AWS_REGION":            "us-east-1",
		"CDA_MANIFEST_URI":      "s3://bucket/from-env.json",
	})
	path := writeConfigFile(t, "manifest_uri: ${CDA_MANIFEST_URI}\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/from-env.json", cfg.ManifestURI)
}

func TestLoadRequiresManifestURI(t *testing.T) {
	setEnv(t, map[string]string{
		"AWS_ACCESS_KEY_ID":     "key",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"AWS_REGION":            "us-east-1",
	})
	path := writeConfigFile(t, "target_cloud: aws\n")

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadFailsOnMissingCredentials(t *testing.T) {
	path := writeConfigFile(t, "manifest_uri: s3://bucket/manifest.json\n")
	_, err := config.Load(path)
	assert.Error(t, err)
}
