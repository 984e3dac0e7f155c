package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable envOverrides reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"BROWSERBASE_API_KEY",
		"BROWSERBASE_PROJECT_ID",
		"BROWSERBASE_BASE_URL",
		"BROWSERHUB_CONTEXT_ID",
		"BROWSERHUB_ARTIFACT_BACKEND",
		"REDIS_ADDR",
		"BROWSERHUB_LOG_VERBOSITY",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "browserhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.Browserbase.BaseURL)
	assert.Equal(t, DefaultViewportWidth, cfg.Browserbase.Viewport.Width)
	assert.Equal(t, DefaultViewportHeight, cfg.Browserbase.Viewport.Height)
	assert.Equal(t, BackendMemory, cfg.Artifacts.Backend)
	assert.Equal(t, "normal", cfg.Logging.Verbosity)
	assert.False(t, cfg.Browserbase.HasCredentials())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
browserbase:
  api_key: file-key
  project_id: file-project
  base_url: https://bb.example.test/
  context:
    id: ctx-123
    persist: false
  proxies: true
  viewport:
    width: 1280
  cookies:
    - name: sid
      value: abc
      domain: .example.com
      same_site: Lax
artifacts:
  backend: redis
  redis_addr: redis:6379
logging:
  verbosity: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	bb := cfg.Browserbase
	assert.Equal(t, "file-key", bb.APIKey)
	assert.Equal(t, "file-project", bb.ProjectID)
	assert.Equal(t, "https://bb.example.test", bb.BaseURL)
	assert.Equal(t, "ctx-123", bb.Context.ID)
	assert.False(t, bb.Context.ShouldPersist())
	assert.True(t, bb.Proxies)
	assert.Equal(t, 1280, bb.Viewport.Width)
	assert.Equal(t, DefaultViewportHeight, bb.Viewport.Height)
	require.Len(t, bb.Cookies, 1)
	assert.Equal(t, "sid", bb.Cookies[0].Name)
	assert.Equal(t, BackendRedis, cfg.Artifacts.Backend)
	assert.Equal(t, "redis:6379", cfg.Artifacts.RedisAddr)
	assert.Equal(t, "debug", cfg.Logging.Verbosity)
	assert.True(t, bb.HasCredentials())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("BROWSERBASE_API_KEY", "env-key")
	t.Setenv("BROWSERHUB_CONTEXT_ID", "env-ctx")
	t.Setenv("BROWSERHUB_LOG_VERBOSITY", "quiet")

	path := writeConfig(t, `
browserbase:
  api_key: file-key
  project_id: file-project
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Browserbase.APIKey)
	assert.Equal(t, "file-project", cfg.Browserbase.ProjectID)
	assert.Equal(t, "env-ctx", cfg.Browserbase.Context.ID)
	assert.True(t, cfg.Browserbase.Context.ShouldPersist())
	assert.Equal(t, "quiet", cfg.Logging.Verbosity)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "browserbase: [unclosed"))
		assert.ErrorContains(t, err, "failed to parse config file")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "viewport too small",
			mutate:  func(c *Config) { c.Browserbase.Viewport.Width = 50 },
			wantErr: "viewport width",
		},
		{
			name:    "viewport too tall",
			mutate:  func(c *Config) { c.Browserbase.Viewport.Height = 9000 },
			wantErr: "viewport height",
		},
		{
			name: "cookie without target",
			mutate: func(c *Config) {
				c.Browserbase.Cookies = []CookieConfig{{Name: "sid", Value: "x"}}
			},
			wantErr: "url or domain is required",
		},
		{
			name: "cookie with bad same_site",
			mutate: func(c *Config) {
				c.Browserbase.Cookies = []CookieConfig{{Name: "sid", Domain: "a.test", SameSite: "Sometimes"}}
			},
			wantErr: "invalid same_site",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Artifacts.Backend = "s3" },
			wantErr: "invalid artifact backend",
		},
		{
			name:    "unknown verbosity",
			mutate:  func(c *Config) { c.Logging.Verbosity = "loud" },
			wantErr: "invalid logging verbosity",
		},
		{
			name: "empty fields get defaults",
			mutate: func(c *Config) {
				c.Browserbase.BaseURL = ""
				c.Artifacts.Backend = ""
				c.Logging.Verbosity = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, DefaultBaseURL, cfg.Browserbase.BaseURL)
				assert.Equal(t, BackendMemory, cfg.Artifacts.Backend)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
