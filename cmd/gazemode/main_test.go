package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/reading.mode/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, ":8080", *listen)
	assert.Equal(t, "udp", *feedKind)
	assert.Equal(t, feed.DefaultUDPAddress, *udpAddr)
	assert.Equal(t, 30*time.Millisecond, *replayEvery)
	assert.Equal(t, 3, *gazeEvery)
	assert.Equal(t, "gaze_sessions.db", *dbPath)
}

func TestBuildFeed(t *testing.T) {
	fixturePath := filepath.Join(t.TempDir(), "fixture.txt")
	require.NoError(t, os.WriteFile(fixturePath, []byte("# comment\n100,200,1\n"), 0o644))

	tests := []struct {
		name    string
		opts    feedOptions
		want    any
		wantErr string
	}{
		{"udp", feedOptions{Kind: "udp"}, &feed.UDPFeed{}, ""},
		{"disabled", feedOptions{Kind: "disabled"}, &feed.DisabledFeed{}, ""},
		{"replay", feedOptions{Kind: "replay", Fixture: fixturePath}, &feed.ReplayFeed{}, ""},
		{"replay without fixture", feedOptions{Kind: "replay"}, nil, "requires --fixture"},
		{"replay missing file", feedOptions{Kind: "replay", Fixture: fixturePath + ".gone"}, nil, "open fixture"},
		{"serial without port", feedOptions{Kind: "serial"}, nil, "requires a port"},
		{"serial bad parity", feedOptions{Kind: "serial", SerialPort: "/dev/null", SerialOptions: feed.PortOptions{Parity: "X"}}, nil, "unsupported parity"},
		{"unknown", feedOptions{Kind: "carrier-pigeon"}, nil, "unknown feed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := buildFeed(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer f.Close()
			assert.IsType(t, tt.want, f)
		})
	}
}

func TestLoadTuning(t *testing.T) {
	cfg, err := loadTuning("")
	require.NoError(t, err)
	assert.Equal(t, 12.0, cfg.GetCharacterWidth())

	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"character_width": 14}`), 0o644))
	cfg, err = loadTuning(path)
	require.NoError(t, err)
	assert.Equal(t, 14.0, cfg.GetCharacterWidth())

	_, err = loadTuning(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
