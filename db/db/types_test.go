package db

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFillMissing(t *testing.T) {
	s := uuid.New()
	keys := []EntryKey{{SessionID: s, Name: "mode"}, {SessionID: s, Name: "groups"}}

	got := FillMissing(keys, map[EntryKey]Entry{keys[0]: {Value: "even", Found: true}})
	assert.Equal(t, Entry{Value: "even", Found: true}, got[keys[0]])
	assert.Equal(t, Entry{}, got[keys[1]])

	assert.Len(t, FillMissing(keys, nil), 2)
}

func TestSessionIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	keys := []EntryKey{{SessionID: a, Name: "mode"}, {SessionID: b, Name: "mode"}, {SessionID: a, Name: "groups"}}
	assert.Equal(t, []uuid.UUID{a, b}, SessionIDs(keys))
}
