package main

import (
	"testing"

	"github.com/jumpgo/server/internal/config"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/rollback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queuedTransport struct{ msgs []rollback.Message }

func (q *queuedTransport) Send(rollback.Message) error { return nil }

func (q *queuedTransport) Receive() ([]rollback.Message, error) {
	out := q.msgs
	q.msgs = nil
	return out, nil
}

func TestEarlyMessagesComeFirstOnce(t *testing.T) {
	inner := &queuedTransport{msgs: []rollback.Message{rollback.ChecksumMessage{Player: 1, Tick: 60}}}
	tr := &earlyTransport{Transport: inner, early: []rollback.Message{rollback.DisconnectMessage{Player: 1}}}

	got, err := tr.Receive()
	require.NoError(t, err)
	assert.Equal(t, []rollback.Message{rollback.DisconnectMessage{Player: 1}, rollback.ChecksumMessage{Player: 1, Tick: 60}}, got)

	got, err = tr.Receive()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSlotsCycleRoster(t *testing.T) {
	content := &data.Content{Players: data.NewPlayerTable(data.PlayerMeta{Name: "a"}, data.PlayerMeta{Name: "b"})}
	s := slots(content, 3)
	assert.True(t, s[0].Active)
	assert.True(t, s[2].Active)
	assert.False(t, s[3].Active)
	assert.Equal(t, data.PlayerHandle(0), s[2].Player)
	assert.Equal(t, data.HatHandle(1), s[1].Hat)
}

func TestProfileMode(t *testing.T) {
	assert.Nil(t, profileMode(""))
	assert.NotNil(t, profileMode("cpu"))
	assert.NotNil(t, profileMode("trace"))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "loud", Format: "json"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(0))
	assert.False(t, log.Core().Enabled(-1), "debug stays off")
}
