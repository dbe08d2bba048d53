package features

import (
	"os"
	"strconv"
	"sync"
	"time"

	"sendlog/internal/constants"
)

// Flags is the remote-config surface consulted by every send log operation.
// It exposes the resend kill switch and the entry lifetime, both mutable at
// runtime with thread-safe access.
type Flags struct {
	mu            sync.RWMutex
	killSwitch    bool
	entryLifetime time.Duration
	updatedAt     time.Time
}

// NewFlags creates a flag surface with default values
func NewFlags() *Flags {
	return &Flags{
		entryLifetime: time.Duration(constants.DefaultEntryLifetimeHours) * time.Hour,
		updatedAt:     time.Now(),
	}
}

// KillSwitch reports whether all send-log recording and reads are disabled.
func (f *Flags) KillSwitch() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.killSwitch
}

// SetKillSwitch toggles the emergency brake
func (f *Flags) SetKillSwitch(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killSwitch = enabled
	f.updatedAt = time.Now()
}

// EntryLifetime returns how long a payload is retained before expiry.
func (f *Flags) EntryLifetime() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.entryLifetime
}

// SetEntryLifetime updates the retention window. Non-positive durations are
// ignored so a bad remote value can't make every fetch expire immediately.
func (f *Flags) SetEntryLifetime(d time.Duration) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entryLifetime = d
	f.updatedAt = time.Now()
}

// UpdatedAt returns when any flag last changed
func (f *Flags) UpdatedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updatedAt
}

// LoadFromEnvironment applies environment overrides:
//
//	SENDLOG_FEATURE_RESEND_KILL_SWITCH=true/false
//	SENDLOG_FEATURE_ENTRY_LIFETIME_HOURS=336
func (f *Flags) LoadFromEnvironment() {
	const (
		envKillSwitch    = "SENDLOG_FEATURE_RESEND_KILL_SWITCH"
		envLifetimeHours = "SENDLOG_FEATURE_ENTRY_LIFETIME_HOURS"
	)

	if value := os.Getenv(envKillSwitch); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			f.SetKillSwitch(enabled)
		}
	}

	if value := os.Getenv(envLifetimeHours); value != "" {
		if hours, err := strconv.Atoi(value); err == nil && hours > 0 {
			f.SetEntryLifetime(time.Duration(hours) * time.Hour)
		}
	}
}
