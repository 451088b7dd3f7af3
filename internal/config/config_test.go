package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Address())
	assert.Equal(t, "http://127.0.0.1:8000/api/", cfg.Backend.APIURL)
	assert.Equal(t, 2*time.Minute, cfg.Backend.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Notify.DismissAfter)
	assert.Equal(t, []string{"pdf"}, cfg.Upload.AllowedTypes)
	assert.Equal(t, "eduquery_session", cfg.Session.CookieName)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eduquery.yaml")
	content := `
server:
  port: 9090
backend:
  api_url: http://rag.internal:8000/api/
  timeout: 30s
notify:
  dismiss_after: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("EDUQUERY_BACKEND_API_URL", "https://answers.example.com/api/")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://answers.example.com/api/", cfg.Backend.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Notify.DismissAfter)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Backend: BackendConfig{APIURL: "http://localhost:8000/api/", Timeout: time.Second},
			Upload:  UploadConfig{MaxSize: 1},
			Notify:  NotifyConfig{DismissAfter: time.Second},
			Session: SessionConfig{IdleTTL: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api url", mutate: func(c *Config) { c.Backend.APIURL = "" }, wantErr: true},
		{name: "bad scheme", mutate: func(c *Config) { c.Backend.APIURL = "ftp://host/" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Backend.Timeout = 0 }, wantErr: true},
		{name: "zero dismiss", mutate: func(c *Config) { c.Notify.DismissAfter = 0 }, wantErr: true},
		{name: "zero max size", mutate: func(c *Config) { c.Upload.MaxSize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUploadConfigAllowsType(t *testing.T) {
	u := UploadConfig{AllowedTypes: []string{".PDF", "txt"}}
	assert.True(t, u.AllowsType("pdf"))
	assert.True(t, u.AllowsType("txt"))
	assert.False(t, u.AllowsType("docx"))
	assert.True(t, UploadConfig{}.AllowsType("anything"))
}
