package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFile), []byte(body), 0644))
}

func TestLoadFrom(t *testing.T) {
	root := filepath.Join(t.TempDir(), MechmonDir)
	writeConfig(t, root, `
webhook_urls = ["https://hooks.example.com/mechmon"]

[[models]]
name = "rasmodel"
corpora = ["large_corpus", "rasmachine_tests"]

[[models]]
name = "marm_model"

[remote]
url = "https://mechmon.example.com"
token = "secret"
`)

	cfg, err := LoadFrom(root)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Path())
	assert.True(t, cfg.UseRemote())
	assert.Equal(t, "secret", cfg.Remote.Token)
	assert.Equal(t, []string{"https://hooks.example.com/mechmon"}, cfg.WebhookURLs)

	require.NotNil(t, cfg.Model("rasmodel"))
	assert.Nil(t, cfg.Model("unknown"))

	assert.Equal(t, []string{
		"rasmodel",
		"rasmodel:large_corpus",
		"rasmodel:rasmachine_tests",
		"marm_model",
	}, cfg.EntityIDs())
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), MechmonDir)
	require.NoError(t, os.MkdirAll(root, 0755))

	cfg := &Config{
		Models: []ModelConfig{{Name: "rasmodel", Corpora: []string{"large_corpus"}}},
		path:   root,
	}
	require.NoError(t, cfg.Save())

	loaded, err := LoadFrom(root)
	require.NoError(t, err)
	assert.Equal(t, cfg.Models, loaded.Models)
	assert.False(t, loaded.UseRemote())
}

func TestPaths(t *testing.T) {
	cfg := &Config{path: "/tmp/.mechmon"}
	assert.Equal(t, filepath.Join("/tmp/.mechmon", LedgerFile), cfg.LedgerPath())
	assert.Equal(t, filepath.Join("/tmp/.mechmon", HistoryDir), cfg.HistoryPath())
}
