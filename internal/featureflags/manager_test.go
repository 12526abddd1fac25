package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("image_uploads=on,message_search=off,a=true,b=false,c=1,d=0")

	assert.True(t, m.Enabled("image_uploads", 1))
	assert.True(t, m.Enabled("a", 1))
	assert.True(t, m.Enabled("c", 1))
	assert.False(t, m.Enabled("message_search", 1))
	assert.False(t, m.Enabled("b", 1))
	assert.False(t, m.Enabled("d", 1))
	assert.False(t, m.Enabled("unknown_flag", 1))
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	assert.True(t, m.Enabled("always", 1))
	assert.False(t, m.Enabled("never", 1))

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42),
			"rollout evaluation must be deterministic per user")
	}

	assert.False(t, m.Enabled("canary", 0), "percentage rollout requires a non-zero user ID")
}

func TestNewManager_SkipsMalformedPairs(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off, =oops ")

	raw := m.Raw()
	require.Len(t, raw, 3)
	assert.Equal(t, "on", raw["x"])
	assert.Equal(t, "20%", raw["y"])
	assert.Equal(t, "off", raw["z"])
}

func TestSnapshot(t *testing.T) {
	m := NewManager("x=on,y=off")

	snap := m.Snapshot(123)
	require.Len(t, snap, 2)
	assert.True(t, snap["x"])
	assert.False(t, snap["y"])
}

func TestEnabled_NilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled("anything", 1))
}
