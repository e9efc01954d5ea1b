package wallet

import "time"

// Default configuration values
const (
	DefaultTimeout = 30 * time.Second

	// How many times a balance mutation re-reads and retries after
	// losing an optimistic-concurrency race before giving up.
	MaxCASRetries = 3
)

// Cache keys and durations
const (
	WalletCachePrefix = "wallet:"
	CacheDuration     = 5 * time.Minute
)
