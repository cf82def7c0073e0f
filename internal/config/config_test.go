package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	p, err := cfg.Printer()
	require.NoError(t, err)
	assert.Equal(t, 32, p.CharsPerLine)
	assert.Equal(t, 8*time.Second, cfg.ScanWindow())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
paper: 80
encoding: gbk
store_backend: preferences
scan_seconds: 4
printer_keywords: [kasir, rpp]
logo: /srv/kpos/logo.png
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	p, err := cfg.Printer()
	require.NoError(t, err)
	assert.Equal(t, 576, p.DeviceWidth)
	assert.Equal(t, 48, p.CharsPerLine)
	assert.Equal(t, "GBK", p.Encoding)
	assert.Equal(t, BackendPreferences, cfg.StoreBackend)
	assert.Equal(t, []string{"kasir", "rpp"}, cfg.PrinterKeywords)
	assert.Equal(t, "/srv/kpos/logo.png", cfg.Logo)
	assert.True(t, cfg.WaitForAdapter, "unset keys keep their default")
	assert.Equal(t, 1, cfg.RFCOMMChannel)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"paper":    "paper: 110",
		"encoding": "encoding: latin1",
		"backend":  "store_backend: sqlite",
		"scan":     "scan_seconds: 0",
		"channel":  "rfcomm_channel: 31",
		"syntax":   "paper: [58",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Paper = 80
	cfg.PrinterKeywords = []string{"kasir"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestStorePath(t *testing.T) {
	cfg := Default()
	cfg.StateDir = "/var/lib/kpos"
	assert.Equal(t, filepath.Join("/var/lib/kpos", "state.json"), cfg.StorePath())
}
