package constants

// Send log defaults
const (
	// DefaultEntryLifetimeHours is how long a payload is retained before the
	// expiry sweep may delete it, delivery state notwithstanding.
	DefaultEntryLifetimeHours = 14 * 24

	// CleanupBatchSize bounds how many payloads one sweep transaction deletes.
	CleanupBatchSize = 25

	CleanupSchedulerIntervalHours = 24
)

// Default timeout values
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultBackoffInitialMs      = 500
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultStatusFetchTimeoutSec = 5
)

// Server defaults
const (
	DefaultServerPort        = 8084
	ServerErrorChannelSize   = 1
	DefaultMaxRequestBodyKiB = 512
)

// Encryption constants
const (
	EncryptionSalt = "sendlog-payload-encryption-v1"
)
