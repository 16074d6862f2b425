package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// History constants
const (
	// DefaultMaxHistoryItems caps each category
	DefaultMaxHistoryItems = 50
	// DefaultSoftLimitBytes is the advisory size for an incoming image
	DefaultSoftLimitBytes = 5 * 1024 * 1024
)

// Image constants
const (
	DefaultMaxWidth         = 1920
	DefaultMaxHeight        = 1080
	DefaultQuality          = 0.8
	DefaultThumbnailSize    = 300
	DefaultThumbnailQuality = 0.6
)

// Storage constants
const (
	EngineSQLite = "sqlite"
	EngineBadger = "badger"
	EngineRedis  = "redis"

	// DefaultQuota is reported when the config does not set storage.quota
	DefaultQuota = "1GiB"
	// DefaultRedisConnectTimeout bounds the initial redis connection attempts
	DefaultRedisConnectTimeout = 10 * time.Second
)
