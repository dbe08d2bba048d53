package features

import (
	"testing"
	"time"

	"sendlog/internal/constants"

	"github.com/stretchr/testify/assert"
)

func TestNewFlags_Defaults(t *testing.T) {
	f := NewFlags()
	assert.False(t, f.KillSwitch())
	assert.Equal(t, time.Duration(constants.DefaultEntryLifetimeHours)*time.Hour, f.EntryLifetime())
}

func TestSetKillSwitch(t *testing.T) {
	f := NewFlags()

	f.SetKillSwitch(true)
	assert.True(t, f.KillSwitch())

	f.SetKillSwitch(false)
	assert.False(t, f.KillSwitch())
}

func TestSetEntryLifetime(t *testing.T) {
	f := NewFlags()

	f.SetEntryLifetime(24 * time.Hour)
	assert.Equal(t, 24*time.Hour, f.EntryLifetime())

	// Non-positive values are ignored.
	f.SetEntryLifetime(0)
	assert.Equal(t, 24*time.Hour, f.EntryLifetime())

	f.SetEntryLifetime(-time.Hour)
	assert.Equal(t, 24*time.Hour, f.EntryLifetime())
}

func TestUpdatedAtAdvances(t *testing.T) {
	f := NewFlags()
	before := f.UpdatedAt()

	time.Sleep(time.Millisecond)
	f.SetKillSwitch(true)
	assert.True(t, f.UpdatedAt().After(before))
}

func TestLoadFromEnvironment(t *testing.T) {
	f := NewFlags()

	t.Setenv("SENDLOG_FEATURE_RESEND_KILL_SWITCH", "true")
	t.Setenv("SENDLOG_FEATURE_ENTRY_LIFETIME_HOURS", "72")

	f.LoadFromEnvironment()
	assert.True(t, f.KillSwitch())
	assert.Equal(t, 72*time.Hour, f.EntryLifetime())
}

func TestLoadFromEnvironment_IgnoresInvalidValues(t *testing.T) {
	f := NewFlags()

	t.Setenv("SENDLOG_FEATURE_RESEND_KILL_SWITCH", "maybe")
	t.Setenv("SENDLOG_FEATURE_ENTRY_LIFETIME_HOURS", "-5")

	f.LoadFromEnvironment()
	assert.False(t, f.KillSwitch())
	assert.Equal(t, time.Duration(constants.DefaultEntryLifetimeHours)*time.Hour, f.EntryLifetime())
}
