package store

// Store is a string record store keyed by name. The roster manager keeps its
// whole state under a single key, so the interface stays as small as the
// browser storage it replaces. Get returns an empty string when the key is
// absent.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Close() error
}
