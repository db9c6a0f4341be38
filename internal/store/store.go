// Package store provides the named-slot persistence used by the queue
// engine and the admin directory. Each slot holds one serialized blob;
// callers do their own encoding and treat a missing or unreadable slot
// as "use built-in defaults".
package store

// Slot keys. One slot per owned singleton.
const (
	KeyQueue         = "queue"
	KeyRates         = "rates"
	KeyNotifications = "notification_settings"
	KeyAdminUsers    = "admin_users"
	KeyJWTSecret     = "jwt_secret"
)

type Store interface {
	// Get returns the blob stored under key, or ok=false if the slot
	// has never been written.
	Get(key string) (blob []byte, ok bool, err error)
	Set(key string, blob []byte) error
}
