package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaultsOverMissingFields(t *testing.T) {
	path := writeConfig(t, `{"serverName":"hub.example.com","readUrlPrefix":"https://read.example.com"}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.EqualValues(t, DefaultMaxFileUploadSizeBytes, cfg.MaxFileUploadSizeBytes)
	assert.Equal(t, 4096, cfg.RevocationCacheSize)
	assert.Equal(t, 100, cfg.ListPageSize)
	assert.Equal(t, DriverMemory, cfg.Driver.Kind)
}

func TestLoad_FieldsOverrideDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"serverName":"hub.example.com",
		"readUrlPrefix":"https://read.example.com",
		"maxFileUploadSizeBytes":1048576,
		"driver":{"kind":"disk","rootDir":"/data"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 1*MiB, cfg.MaxFileUploadSizeBytes)
	assert.Equal(t, DriverDisk, cfg.Driver.Kind)
	assert.Equal(t, "/data", cfg.Driver.RootDir)
}

func TestLoad_MissingServerNameFails(t *testing.T) {
	path := writeConfig(t, `{"readUrlPrefix":"https://read.example.com"}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingReadURLPrefixFails(t *testing.T) {
	path := writeConfig(t, `{"serverName":"hub.example.com"}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_NonPositiveMaxSizeFails(t *testing.T) {
	path := writeConfig(t, `{"serverName":"hub.example.com","readUrlPrefix":"https://read.example.com","maxFileUploadSizeBytes":0}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_UnknownDriverKindFails(t *testing.T) {
	path := writeConfig(t, `{"serverName":"hub.example.com","readUrlPrefix":"https://read.example.com","driver":{"kind":"ftp"}}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
}

func TestWhitelistSet(t *testing.T) {
	var c Config
	assert.Nil(t, c.WhitelistSet())

	c.WhitelistedWriters = []string{"alice", "bob"}
	set := c.WhitelistSet()
	require.Len(t, set, 2)
	assert.Contains(t, set, "alice")
	assert.Contains(t, set, "bob")
}
