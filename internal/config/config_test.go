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
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
mode = "host"
players = 2
local_player = 1

[simulation]
tick_rate = 30
max_state_iterations = 16

[rollback]
input_delay = 1

[network]
transport = "websocket"
handshake_timeout = "5s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "host", cfg.Server.Mode)
	assert.Equal(t, 2, cfg.Server.Players)
	assert.Equal(t, 30, cfg.Simulation.TickRate)
	assert.Equal(t, 16, cfg.Simulation.MaxStateIterations)
	assert.Equal(t, 1, cfg.Rollback.InputDelay)
	assert.Equal(t, 8, cfg.Rollback.MaxPrediction, "unset keys keep defaults")
	assert.Equal(t, "websocket", cfg.Network.Transport)
	assert.Equal(t, 5*time.Second, cfg.Network.HandshakeTimeout)
	assert.Equal(t, "content", cfg.Content.Dir)
	assert.False(t, cfg.Database.Enabled)
	assert.NotZero(t, cfg.Server.StartTime)
	assert.Equal(t, time.Second/30, cfg.Simulation.TickDuration())
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"unknown mode":            "[server]\nmode = \"spectate\"\n",
		"join without peer":       "[server]\nmode = \"join\"\n",
		"replay without database": "[server]\nmode = \"replay\"\nmatch_id = \"01HZX3J5Q0B7W9Y4K2N6M8P1RT\"\n",
		"too many players":        "[server]\nplayers = 5\n",
		"replay store too small":  "[database]\nenabled = true\nmax_conns = 1\n",
		"three peer host":         "[server]\nmode = \"host\"\nplayers = 3\n",
		"join without match id":   "[server]\nmode = \"join\"\npeer_address = \"h:1\"\n",
		"local slot out of range": "[server]\nplayers = 2\nlocal_player = 2\n",
		"zero tick rate":          "[simulation]\ntick_rate = 0\n",
		"no prediction":           "[rollback]\nmax_prediction = 0\n",
		"bad transport":           "[network]\ntransport = \"udp\"\n",
		"broken toml":             "[server\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestPathFromEnvironment(t *testing.T) {
	t.Setenv("JUMPGO_CONFIG", "")
	assert.Equal(t, DefaultPath, Path())
	t.Setenv("JUMPGO_CONFIG", "/etc/jumpgo.toml")
	assert.Equal(t, "/etc/jumpgo.toml", Path())
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
