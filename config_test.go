package spacetraveling

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	yaml := `name: Space Traveling
url: https://blog.example.com
prismic_endpoint: https://spacetraveling.cdn.prismic.io/api/v2
page_size: 2
revalidate: 1h
fetch_timeout: 5s
timezone: America/Sao_Paulo
image_hosts:
  - images.prismic.io
  - cdn.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfigFile(path)

	require.NoError(t, err)
	assert.Equal(t, "Space Traveling", cfg.Name)
	assert.Equal(t, "https://spacetraveling.cdn.prismic.io/api/v2", cfg.PrismicEndpoint)
	assert.Equal(t, 2, cfg.PageSize)
	assert.Equal(t, time.Hour, cfg.Revalidate)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{"images.prismic.io", "cdn.example.com"}, cfg.ImageHosts)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_size: [1"), 0o644))
	_, err = LoadConfigFile(path)
	assert.Error(t, err)

	cfg, err := LoadConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, SiteConfig{}, cfg)
}

func TestOverlay(t *testing.T) {
	base := SiteConfig{
		Name:            "From file",
		PrismicEndpoint: "https://a.cdn.prismic.io/api/v2",
		PageSize:        5,
		Revalidate:      time.Hour,
	}
	got := base.Overlay(SiteConfig{
		PrismicEndpoint: "https://b.cdn.prismic.io/api/v2",
		FetchTimeout:    3 * time.Second,
		CookieSecure:    true,
	})

	assert.Equal(t, "From file", got.Name)
	assert.Equal(t, "https://b.cdn.prismic.io/api/v2", got.PrismicEndpoint)
	assert.Equal(t, 5, got.PageSize)
	assert.Equal(t, time.Hour, got.Revalidate)
	assert.Equal(t, 3*time.Second, got.FetchTimeout)
	assert.True(t, got.CookieSecure)
}

func TestSetDefaults(t *testing.T) {
	var cfg SiteConfig
	cfg.setDefaults()

	assert.Equal(t, "spacetraveling", cfg.Name)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, 30*time.Minute, cfg.Revalidate)
	assert.Equal(t, []string{"images.prismic.io"}, cfg.ImageHosts)
	assert.Len(t, cfg.SessionSecret, 64)
}

func TestValidate(t *testing.T) {
	assert.Error(t, SiteConfig{Timezone: "UTC"}.validate())
	assert.Error(t, SiteConfig{PrismicEndpoint: "https://x/api/v2", Timezone: "Mars/Olympus"}.validate())
	assert.NoError(t, SiteConfig{PrismicEndpoint: "https://x/api/v2", Timezone: "UTC"}.validate())
}
