package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenixrpa/internal/decision"
)

func clearFenixEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FENIX_BASE_URL", "FENIX_USER", "FENIX_PASSWORD", "FENIX_HEADLESS",
		"FENIX_BROWSER_BIN", "FENIX_DEBUGGER_URL", "FENIX_JOURNAL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://fenixflorestal.suzanonet.com.br/", cfg.Portal.BaseURL)
	assert.Equal(t, "Geocat", cfg.Form.Requester)
	assert.Equal(t, "Média", cfg.Form.Urgency)
	assert.Equal(t, "Sinistro", cfg.Form.OccurrenceType)
	assert.Equal(t, "SIM", cfg.Data.FlagYes)
	assert.Equal(t, "NÃO", cfg.Data.FlagNo)
	assert.Equal(t, 1, cfg.Retry.BindRetries)
	assert.Equal(t, "CS", cfg.Decision.DefaultRegion)
	assert.Equal(t, decision.IncidenceAuto, cfg.Decision.Unit())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearFenixEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Portal.BaseURL, cfg.Portal.BaseURL)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearFenixEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
portal:
  base_url: https://fenix.example.test/
timeouts:
  locate_attempt: 500ms
data:
  group_by: property
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://fenix.example.test/", cfg.Portal.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeouts.GetLocateAttempt())
	assert.Equal(t, 30*time.Second, cfg.Timeouts.GetNavigation())
	assert.Equal(t, "property", cfg.Data.GroupBy)
	assert.Equal(t, "Geocat", cfg.Form.Requester)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("portal: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	clearFenixEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Portal.Username = "operator"
	cfg.Portal.Password = "never-written"
	cfg.Decision.Regions["ZZ"] = "CS"

	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "never-written")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "operator", loaded.Portal.Username)
	assert.Empty(t, loaded.Portal.Password)
	assert.Equal(t, "CS", loaded.Decision.Regions["ZZ"])
}

func TestTimeoutFallbacks(t *testing.T) {
	tc := TimeoutsConfig{LocateAttempt: "nonsense", Login: "-1s"}

	assert.Equal(t, 3*time.Second, tc.GetLocateAttempt())
	assert.Equal(t, 2*time.Minute, tc.GetLogin())
	assert.Equal(t, 2*time.Second, tc.GetLoginPoll())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad url", func(c *Config) { c.Portal.BaseURL = "not a url" }, true},
		{"bad login mode", func(c *Config) { c.Portal.LoginMode = "sso" }, true},
		{"credentials without password", func(c *Config) {
			c.Portal.LoginMode = "credentials"
			c.Portal.Username = "u"
		}, true},
		{"credentials complete", func(c *Config) {
			c.Portal.LoginMode = "credentials"
			c.Portal.Username = "u"
			c.Portal.Password = "p"
		}, false},
		{"bad incidence unit", func(c *Config) { c.Decision.IncidenceUnit = "permille" }, true},
		{"negative retries", func(c *Config) { c.Retry.BindRetries = -1 }, true},
		{"empty flag", func(c *Config) { c.Data.FlagYes = " " }, true},
		{"bad group_by", func(c *Config) { c.Data.GroupBy = "region" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
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

func TestUseCredentials(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.UseCredentials())

	cfg.Portal.Username, cfg.Portal.Password = "u", "p"
	assert.True(t, cfg.UseCredentials())

	cfg.Portal.LoginMode = "interactive"
	assert.False(t, cfg.UseCredentials())
}
