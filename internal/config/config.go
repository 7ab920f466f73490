package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

// Getenv returns the environment value for key, or def when unset.
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetenvInt reads an integer environment value with a default.
func GetenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// GetenvInt64 reads an int64 environment value with a default.
func GetenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return def
	}
	return n
}

// GetenvBool reads a boolean environment value ("true", "1", "yes").
func GetenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// GetenvDuration reads a duration value such as "30s" or "5m".
func GetenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return def
	}
	return d
}

// CountryCode is the calling code used when normalizing local numbers
// that start with "0".
func CountryCode() string {
	return Getenv("DEFAULT_COUNTRY_CODE", "62")
}

// MaxUploadPhotos caps how many photos one vehicle upload may carry.
func MaxUploadPhotos() int {
	return GetenvInt("MAX_UPLOAD_PHOTOS", 10)
}

// ProcessTimeout bounds end-to-end handling of a single message turn.
func ProcessTimeout() time.Duration {
	return GetenvDuration("PROCESS_TIMEOUT", 30*time.Second)
}

// UploadStateTTL is how long an unfinished vehicle upload survives
// before the sweep job resets it.
func UploadStateTTL() time.Duration {
	return GetenvDuration("UPLOAD_STATE_TTL", 24*time.Hour)
}

// IdleCloseAfter is how long a conversation may sit without messages
// before the nightly job marks it closed.
func IdleCloseAfter() time.Duration {
	return GetenvDuration("IDLE_CLOSE_AFTER", 30*24*time.Hour)
}
