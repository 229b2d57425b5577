package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"billsplit/bill"
	"billsplit/metrics"
	"billsplit/mq/mq"
	"billsplit/orders"
	"billsplit/persist"
	"billsplit/poll"
)

// Session is one diner's settlement of one table. Commands are serialized by mu;
// events are published after the lock is released.
type Session struct {
	ID      uuid.UUID
	TableID string

	mu         sync.Mutex
	settlement *bill.Settlement
	updatedAt  time.Time

	persister *persist.Persister
	poller    *poll.Poller
	source    orders.Source
	queues    mq.SettlementMessageQueueWrapper
	log       *slog.Logger
}

// GroupView is a payment group with its paid flag.
type GroupView struct {
	bill.PaymentGroup
	Paid bool `json:"paid"`
}

// AvailableEntry is an entry that still has unassigned units.
type AvailableEntry struct {
	bill.BillableEntry
	MaxAssignable int `json:"maxAssignable"`
}

// Snapshot is everything the presentation layer shows for a session.
type Snapshot struct {
	SessionID        uuid.UUID            `json:"sessionId"`
	TableID          string               `json:"tableId"`
	Mode             bill.Mode            `json:"mode"`
	Total            float64              `json:"total"`
	AmountDue        float64              `json:"amountDue"`
	PeopleCount      int                  `json:"peopleCount"`
	PerPersonShare   float64              `json:"perPersonShare"`
	Entries          []bill.BillableEntry `json:"entries"`
	AvailableEntries []AvailableEntry     `json:"availableEntries"`
	Staged           map[string]int       `json:"staged"`
	Groups           []GroupView          `json:"groups"`
	PaidGroupIDs     []uuid.UUID          `json:"paidGroupIds"`
	PaidAmount       float64              `json:"paidAmount"`
	PendingAmount    float64              `json:"pendingAmount"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.settlement
	entries := st.Entries()
	if entries == nil {
		entries = []bill.BillableEntry{}
	}
	available := make([]AvailableEntry, 0, len(entries))
	for _, e := range st.AvailableEntries() {
		available = append(available, AvailableEntry{BillableEntry: e, MaxAssignable: st.MaxAssignable(e.ID)})
	}
	groups := make([]GroupView, 0)
	for _, g := range st.Groups() {
		groups = append(groups, GroupView{PaymentGroup: g, Paid: st.IsPaid(g.ID)})
	}

	return Snapshot{
		SessionID:        s.ID,
		TableID:          s.TableID,
		Mode:             st.Mode(),
		Total:            st.Total(),
		AmountDue:        st.AmountDue(),
		PeopleCount:      st.PeopleCount(),
		PerPersonShare:   st.PerPersonShare(),
		Entries:          entries,
		AvailableEntries: available,
		Staged:           st.Staged(),
		Groups:           groups,
		PaidGroupIDs:     st.PaidGroupIDs(),
		PaidAmount:       st.PaidAmount(),
		PendingAmount:    st.PendingAmount(),
		UpdatedAt:        s.updatedAt,
	}
}

func (s *Session) SetMode(mode bill.Mode) bool {
	s.mu.Lock()
	changed := s.settlement.Mode() != mode
	ok := s.settlement.SetMode(mode)
	msg := s.settlementMessage(uuid.Nil)
	s.mu.Unlock()

	if ok && changed {
		s.publish(mq.ActionUpdate, msg)
	}
	return ok
}

func (s *Session) IncrementPeople() int {
	s.mu.Lock()
	s.settlement.IncrementPeople()
	n := s.settlement.PeopleCount()
	msg := s.settlementMessage(uuid.Nil)
	s.mu.Unlock()

	s.publish(mq.ActionUpdate, msg)
	return n
}

// DecrementPeople reports false when the count is already at its floor of one.
func (s *Session) DecrementPeople() (int, bool) {
	s.mu.Lock()
	ok := s.settlement.DecrementPeople()
	n := s.settlement.PeopleCount()
	msg := s.settlementMessage(uuid.Nil)
	s.mu.Unlock()

	if ok {
		s.publish(mq.ActionUpdate, msg)
	}
	return n, ok
}

// Share returns the per-person share and the head count it was computed with.
func (s *Session) Share() (float64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settlement.PerPersonShare(), s.settlement.PeopleCount()
}

func (s *Session) AvailableEntries() []AvailableEntry {
	return s.Snapshot().AvailableEntries
}

// MaxAssignable also reports whether the entry exists. Unknown entries have 0 available.
func (s *Session) MaxAssignable(entryID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settlement.Pool().Entry(entryID); !ok {
		return 0, false
	}
	return s.settlement.MaxAssignable(entryID), true
}

func (s *Session) StageQuantity(entryID string, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settlement.StageQuantity(entryID, quantity)
}

func (s *Session) Staged() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settlement.Staged()
}

func (s *Session) ClearStaged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlement.ClearStaged()
}

// CreateGroup commits selections, or the staged selection when selections is nil,
// and returns the new group.
func (s *Session) CreateGroup(name string, selections map[string]int) (bill.PaymentGroup, bool) {
	s.mu.Lock()
	groups, ok := s.settlement.CreateGroup(name, selections)
	var (
		created bill.PaymentGroup
		msg     mq.SettlementMessage
	)
	if ok {
		created = groups[len(groups)-1]
		msg = s.settlementMessage(created.ID)
	}
	s.mu.Unlock()

	if !ok {
		metrics.GroupEvents.WithLabelValues("rejected").Inc()
		return bill.PaymentGroup{}, false
	}
	metrics.GroupEvents.WithLabelValues("created").Inc()
	s.publish(mq.ActionCreate, msg)
	return created, true
}

func (s *Session) DeleteGroup(id uuid.UUID) bool {
	s.mu.Lock()
	ok := s.settlement.DeleteGroup(id)
	msg := s.settlementMessage(id)
	s.mu.Unlock()

	if ok {
		metrics.GroupEvents.WithLabelValues("deleted").Inc()
		s.publish(mq.ActionDelete, msg)
	}
	return ok
}

// TogglePaid returns the new paid state; ok is false for an unknown group.
func (s *Session) TogglePaid(id uuid.UUID) (paid, ok bool) {
	s.mu.Lock()
	paid, ok = s.settlement.TogglePaid(id)
	msg := s.settlementMessage(id)
	s.mu.Unlock()

	if !ok {
		return false, false
	}
	if paid {
		metrics.GroupEvents.WithLabelValues("paid").Inc()
	} else {
		metrics.GroupEvents.WithLabelValues("unpaid").Inc()
	}
	s.publish(mq.ActionUpdate, msg)
	return paid, true
}

// Pending returns the pending and the paid amount.
func (s *Session) Pending() (pending, paid float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settlement.PendingAmount(), s.settlement.PaidAmount()
}

func (s *Session) Configuration() bill.SplitConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settlement.Configuration()
}

// Refresh fetches the order history from upstream now, bypassing any cached copy.
// On failure the previous history stays.
func (s *Session) Refresh(ctx context.Context) error {
	if inv, ok := s.source.(orders.Invalidator); ok {
		inv.Invalidate(s.TableID)
	}
	return s.poller.Poll(ctx)
}

func (s *Session) applyOrders(history []bill.Order) {
	s.mu.Lock()
	s.settlement.SetOrders(history)
	s.updatedAt = time.Now()
	msg := mq.OrderHistoryMessage{
		SessionID:  s.ID,
		TableID:    s.TableID,
		EntryCount: len(s.settlement.Entries()),
		Total:      s.settlement.Total(),
	}
	s.mu.Unlock()

	if s.queues == nil {
		return
	}
	if err := s.queues.GetOrderHistoryMessageQueue().Publish(msg); err != nil {
		s.log.Warn("failed to publish order history event", "error", err)
	}
}

// settlementMessage must be called with mu held.
func (s *Session) settlementMessage(groupID uuid.UUID) mq.SettlementMessage {
	return mq.SettlementMessage{
		SessionID:     s.ID,
		GroupID:       groupID,
		Mode:          s.settlement.Mode(),
		PeopleCount:   s.settlement.PeopleCount(),
		PendingAmount: s.settlement.PendingAmount(),
		AmountDue:     s.settlement.AmountDue(),
	}
}

func (s *Session) publish(action mq.Action, msg mq.SettlementMessage) {
	if s.queues == nil {
		return
	}
	q := s.queues.GetSettlementMessageQueue(action)
	if q == nil {
		return
	}
	if err := q.Publish(msg); err != nil {
		s.log.Warn("failed to publish settlement event", "action", action, "error", err)
	}
}

func (s *Session) close(ctx context.Context) error {
	s.poller.Stop()
	return s.persister.Close(ctx)
}
