package mq

import (
	"github.com/google/uuid"

	"billsplit/bill"
)

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionCnt
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// OrderHistoryMessage is published after a session's order history was refreshed.
type OrderHistoryMessage struct {
	SessionID  uuid.UUID `json:"sessionId"`
	TableID    string    `json:"tableId"`
	EntryCount int       `json:"entryCount"`
	Total      float64   `json:"total"`
}

func (m OrderHistoryMessage) GetTopic() uuid.UUID {
	return m.SessionID
}

// SettlementMessage is published after a settlement command changed persisted state.
// GroupID is uuid.Nil for changes not tied to a group.
type SettlementMessage struct {
	SessionID     uuid.UUID `json:"sessionId"`
	GroupID       uuid.UUID `json:"groupId"`
	Mode          bill.Mode `json:"mode"`
	PeopleCount   int       `json:"peopleCount"`
	PendingAmount float64   `json:"pendingAmount"`
	AmountDue     float64   `json:"amountDue"`
}

func (m SettlementMessage) GetTopic() uuid.UUID {
	return m.SessionID
}
