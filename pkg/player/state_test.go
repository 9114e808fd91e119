package player_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radioteateonair/radiod/pkg/player"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", player.StateIdle.String())
	assert.Equal(t, "preparing", player.StatePreparing.String())
	assert.Equal(t, "ready", player.StateReady.String())
	assert.Equal(t, "playing", player.StatePlaying.String())
	assert.Equal(t, "closed", player.StateClosed.String())
	assert.Equal(t, "unknown", player.State(99).String())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "play", player.ActionPlay.String())
	assert.Equal(t, "pause", player.ActionPause.String())
	assert.Equal(t, "stop", player.ActionStop.String())
	assert.Equal(t, "close", player.ActionClose.String())
	assert.Equal(t, "prefetch", player.ActionPrefetch.String())
	assert.Equal(t, "none", player.ActionNone.String())
}

func TestParseAction(t *testing.T) {
	assert.Equal(t, player.ActionPlay, player.ParseAction("play"))
	assert.Equal(t, player.ActionPause, player.ParseAction("pause"))
	assert.Equal(t, player.ActionStop, player.ParseAction("stop"))
	assert.Equal(t, player.ActionClose, player.ParseAction("close"))
	assert.Equal(t, player.ActionPrefetch, player.ParseAction("prefetch"))

	// Unknown tags default to prefetch, mirroring a restart with no intent
	assert.Equal(t, player.ActionPrefetch, player.ParseAction(""))
	assert.Equal(t, player.ActionPrefetch, player.ParseAction("rewind"))
}
