package db

import (
	"github.com/google/uuid"
)

// EntryKey addresses one persisted value of a session.
type EntryKey struct {
	SessionID uuid.UUID
	Name      string
}

// Entry is a persisted value. Found is false when the key was never written,
// which is not an error.
type Entry struct {
	Value string
	Found bool
}

// FillMissing sets a not-found Entry for every key absent from found.
func FillMissing(keys []EntryKey, found map[EntryKey]Entry) map[EntryKey]Entry {
	if found == nil {
		found = make(map[EntryKey]Entry, len(keys))
	}
	for _, k := range keys {
		if _, ok := found[k]; !ok {
			found[k] = Entry{}
		}
	}
	return found
}

// SessionIDs returns the distinct sessions of keys in first-seen order.
func SessionIDs(keys []EntryKey) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(keys))
	var ids []uuid.UUID
	for _, k := range keys {
		if !seen[k.SessionID] {
			seen[k.SessionID] = true
			ids = append(ids, k.SessionID)
		}
	}
	return ids
}
