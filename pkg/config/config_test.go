package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 8080, cfg.Port)
	require.True(t, cfg.EnableInlineWorker)
	require.Equal(t, 4, cfg.DefaultMaxRetries)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "production", cfg.AppEnv)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.True(t, cfg.IsProduction())
}

func TestListenAddr(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 1234}
	require.Equal(t, "127.0.0.1:1234", cfg.ListenAddr())
}

func TestPublicURLFallsBackToBaseURL(t *testing.T) {
	cfg := &Config{BaseURL: "https://base.example"}
	require.Equal(t, "https://base.example", cfg.PublicURL())

	cfg.ServerPublicURL = "https://public.example"
	require.Equal(t, "https://public.example", cfg.PublicURL())
}
