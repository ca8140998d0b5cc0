package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustHereToHelp/HydraMCP/types"
)

func TestRegistry_ClosedByDefault(t *testing.T) {
	r := NewRegistry(Config{MaxFailures: 3, Cooldown: time.Minute}, nil)
	assert.False(t, r.IsOpen("gpt-4"))
	rec := r.Record("gpt-4")
	assert.Equal(t, types.CircuitClosed, rec.State)
	assert.Equal(t, 0, rec.ConsecutiveFailures)
}

func TestRegistry_OpensAtMaxFailures(t *testing.T) {
	r := NewRegistry(Config{MaxFailures: 3, Cooldown: time.Minute}, nil)
	r.RecordFailure("gpt-4")
	r.RecordFailure("gpt-4")
	assert.False(t, r.IsOpen("gpt-4"), "should stay closed below the threshold")

	r.RecordFailure("gpt-4")
	assert.True(t, r.IsOpen("gpt-4"), "should open once consecutive failures reach MaxFailures")
	assert.Equal(t, types.CircuitOpen, r.Record("gpt-4").State)
}

func TestRegistry_SuccessResetsConsecutiveFailures(t *testing.T) {
	r := NewRegistry(Config{MaxFailures: 3, Cooldown: time.Minute}, nil)
	r.RecordFailure("gpt-4")
	r.RecordFailure("gpt-4")
	r.RecordSuccess("gpt-4")

	rec := r.Record("gpt-4")
	assert.Equal(t, types.CircuitClosed, rec.State)
	assert.Equal(t, 0, rec.ConsecutiveFailures)
}

func TestRegistry_HalfOpenAfterCooldownGrantsOneProbe(t *testing.T) {
	r := NewRegistry(Config{MaxFailures: 1, Cooldown: time.Millisecond}, nil)
	r.RecordFailure("gpt-4")
	require.True(t, r.IsOpen("gpt-4"))

	time.Sleep(5 * time.Millisecond)

	assert.False(t, r.IsOpen("gpt-4"), "first check after cooldown should admit exactly one probe")
	assert.True(t, r.IsOpen("gpt-4"), "a second concurrent check must not get a probe while one is in flight")
	assert.Equal(t, types.CircuitHalfOpen, r.Record("gpt-4").State)
}

func TestRegistry_HalfOpenProbeSuccessCloses(t *testing.T) {
	r := NewRegistry(Config{MaxFailures: 1, Cooldown: time.Millisecond}, nil)
	r.RecordFailure("gpt-4")
	time.Sleep(5 * time.Millisecond)
	require.False(t, r.IsOpen("gpt-4"))

	r.RecordSuccess("gpt-4")

	rec := r.Record("gpt-4")
	assert.Equal(t, types.CircuitClosed, rec.State)
	assert.False(t, r.IsOpen("gpt-4"))
}

func TestRegistry_HalfOpenProbeFailureReopens(t *testing.T) {
	r := NewRegistry(Config{MaxFailures: 1, Cooldown: time.Millisecond}, nil)
	r.RecordFailure("gpt-4")
	time.Sleep(5 * time.Millisecond)
	require.False(t, r.IsOpen("gpt-4"))

	r.RecordFailure("gpt-4")

	assert.Equal(t, types.CircuitOpen, r.Record("gpt-4").State)
	assert.True(t, r.IsOpen("gpt-4"))
}

func TestRegistry_OpenModelsListsOpenAndInFlightHalfOpen(t *testing.T) {
	r := NewRegistry(Config{MaxFailures: 1, Cooldown: time.Hour}, nil)
	r.RecordFailure("a")
	r.RecordFailure("b")
	require.True(t, r.IsOpen("a"))
	require.True(t, r.IsOpen("b"))

	open := r.OpenModels()
	assert.ElementsMatch(t, []string{"a", "b"}, open)
}

func TestRegistry_ResetForcesClosed(t *testing.T) {
	r := NewRegistry(Config{MaxFailures: 1, Cooldown: time.Hour}, nil)
	r.RecordFailure("gpt-4")
	require.True(t, r.IsOpen("gpt-4"))

	r.Reset("gpt-4")

	assert.False(t, r.IsOpen("gpt-4"))
	assert.Equal(t, types.CircuitClosed, r.Record("gpt-4").State)
}

func TestRegistry_IndependentPerModel(t *testing.T) {
	r := NewRegistry(Config{MaxFailures: 1, Cooldown: time.Hour}, nil)
	r.RecordFailure("a")
	assert.True(t, r.IsOpen("a"))
	assert.False(t, r.IsOpen("b"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxFailures)
	assert.Equal(t, 60*time.Second, cfg.Cooldown)
}
