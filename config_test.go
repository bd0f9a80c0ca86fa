package spacetravel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "Space Traveling", cfg.Name)
	assert.Equal(t, "pt-BR", cfg.Locale)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, SourcePrismic, cfg.ContentSource)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 100, cfg.MaxPageSize)
	assert.Equal(t, 2, cfg.PrebuildCount)
	assert.Equal(t, "dist", cfg.OutputDir)
	assert.Equal(t, 30*time.Minute, cfg.Revalidate)
	assert.Equal(t, 3*time.Second, cfg.FallbackWait)
	assert.Equal(t, 10*time.Second, cfg.CMSTimeout)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.PreviewEnabled())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SITE_NAME", "Blog de Teste")
	t.Setenv("CONTENT_SOURCE", "sqlite")
	t.Setenv("PAGE_SIZE", "5")
	t.Setenv("REVALIDATE", "1m")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "Blog de Teste", cfg.Name)
	assert.Equal(t, SourceSQLite, cfg.ContentSource)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, time.Minute, cfg.Revalidate)
	assert.True(t, cfg.PreviewEnabled())
	assert.False(t, cfg.MetricsEnabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Space Traveling
url: https://blog.example.com
locale: en
content_source: sqlite
local_database_path: /tmp/content.db
page_size: 3
max_page_size: 9
fallback_wait: 1s
`), 0o644))
	t.Setenv("PAGE_SIZE", "4")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.com", cfg.URL)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, SourceSQLite, cfg.ContentSource)
	assert.Equal(t, "/tmp/content.db", cfg.LocalDatabasePath)
	assert.Equal(t, 4, cfg.PageSize, "environment overrides the file")
	assert.Equal(t, 9, cfg.MaxPageSize)
	assert.Equal(t, time.Second, cfg.FallbackWait)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown source", map[string]string{"CONTENT_SOURCE": "wordpress"}},
		{"page size above max", map[string]string{"PAGE_SIZE": "50", "MAX_PAGE_SIZE": "10"}},
		{"negative duration", map[string]string{"FALLBACK_WAIT": "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
