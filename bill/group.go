package bill

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GroupManager owns the payment groups, the paid set and the in-progress staged selection.
type GroupManager struct {
	pool   *AllocationPool
	groups []PaymentGroup
	paid   []uuid.UUID
	staged map[string]int

	newID func() uuid.UUID
	now   func() time.Time
}

// NewGroupManager creates a manager whose pool holds the given entries.
func NewGroupManager(entries []BillableEntry) *GroupManager {
	m := &GroupManager{
		groups: []PaymentGroup{},
		paid:   []uuid.UUID{},
		staged: map[string]int{},
		newID:  uuid.New,
		now:    time.Now,
	}
	m.pool = newAllocationPool(entries, m)
	return m
}

func (m *GroupManager) committedGroups() []PaymentGroup {
	return m.groups
}

// Pool returns the allocation pool backed by this manager's groups.
func (m *GroupManager) Pool() *AllocationPool {
	return m.pool
}

// StageQuantity records quantity for entryID in the pending selection.
// It is rejected when quantity is outside [0, MaxAssignable(entryID)], keeping the
// previous staged value. Zero removes the entry from the selection.
func (m *GroupManager) StageQuantity(entryID string, quantity int) bool {
	if quantity < 0 || quantity > m.pool.MaxAssignable(entryID) {
		return false
	}
	if quantity == 0 {
		delete(m.staged, entryID)
		return true
	}
	m.staged[entryID] = quantity
	return true
}

// Staged returns a copy of the pending selection.
func (m *GroupManager) Staged() map[string]int {
	staged := make(map[string]int, len(m.staged))
	for id, q := range m.staged {
		staged[id] = q
	}
	return staged
}

// pruneStaged drops staged quantities of entries the pool no longer knows.
func (m *GroupManager) pruneStaged() {
	for id := range m.staged {
		if _, ok := m.pool.Entry(id); !ok {
			delete(m.staged, id)
		}
	}
}

func (m *GroupManager) ClearStaged() {
	m.staged = map[string]int{}
}

// CreateGroup commits a new group holding selections. It fails without touching any
// state when name is blank, when no selection is positive, or when a selection is
// negative or exceeds what the pool still has. On success the staged selection is
// cleared and the updated group list is returned.
func (m *GroupManager) CreateGroup(name string, selections map[string]int) ([]PaymentGroup, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	for id, q := range selections {
		if q < 0 {
			return nil, false
		}
		if q > 0 && q > m.pool.MaxAssignable(id) {
			return nil, false
		}
	}

	var items []GroupItem
	subtotal := 0.0
	for _, e := range m.pool.entries {
		q := selections[e.ID]
		if q <= 0 {
			continue
		}
		items = append(items, GroupItem{Entry: e, SelectedQuantity: q})
		subtotal += e.UnitSubtotal() * float64(q)
	}
	if len(items) == 0 {
		return nil, false
	}

	m.groups = append(m.groups, PaymentGroup{
		ID:        m.newID(),
		Name:      name,
		Items:     items,
		Subtotal:  subtotal,
		CreatedAt: m.now(),
	})
	m.ClearStaged()
	return m.Groups(), true
}

// CommitStaged creates a group from the current staged selection.
func (m *GroupManager) CommitStaged(name string) ([]PaymentGroup, bool) {
	return m.CreateGroup(name, m.staged)
}

// DeleteGroup removes the group and its paid mark. Unknown ids are a no-op reported as false.
func (m *GroupManager) DeleteGroup(id uuid.UUID) bool {
	idx := m.groupIndex(id)
	if idx < 0 {
		return false
	}
	m.groups = append(m.groups[:idx:idx], m.groups[idx+1:]...)
	m.removePaid(id)
	return true
}

// TogglePaid flips the paid mark of an existing group and returns the new state.
// ok is false for unknown groups.
func (m *GroupManager) TogglePaid(id uuid.UUID) (paid bool, ok bool) {
	if m.groupIndex(id) < 0 {
		return false, false
	}
	if m.IsPaid(id) {
		m.removePaid(id)
		return false, true
	}
	m.paid = append(m.paid, id)
	return true, true
}

func (m *GroupManager) IsPaid(id uuid.UUID) bool {
	for _, p := range m.paid {
		if p == id {
			return true
		}
	}
	return false
}

// PaidGroupIDs returns the paid set in the order groups were marked.
func (m *GroupManager) PaidGroupIDs() []uuid.UUID {
	return append([]uuid.UUID{}, m.paid...)
}

// PaidAmount sums the subtotals of existing groups marked paid.
func (m *GroupManager) PaidAmount() float64 {
	paid := 0.0
	for _, g := range m.groups {
		if m.IsPaid(g.ID) {
			paid += g.Subtotal
		}
	}
	return paid
}

// PendingAmount is total minus the paid amount. A negative result is returned as is.
func (m *GroupManager) PendingAmount(totalAccumulated float64) float64 {
	return totalAccumulated - m.PaidAmount()
}

// Groups returns a copy of the committed groups in creation order.
func (m *GroupManager) Groups() []PaymentGroup {
	return append([]PaymentGroup{}, m.groups...)
}

func (m *GroupManager) Group(id uuid.UUID) (PaymentGroup, bool) {
	idx := m.groupIndex(id)
	if idx < 0 {
		return PaymentGroup{}, false
	}
	return m.groups[idx], true
}

// Restore replaces groups and paid set with persisted values, verbatim.
func (m *GroupManager) Restore(groups []PaymentGroup, paid []uuid.UUID) {
	m.groups = append([]PaymentGroup{}, groups...)
	m.paid = append([]uuid.UUID{}, paid...)
}

func (m *GroupManager) groupIndex(id uuid.UUID) int {
	for i, g := range m.groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func (m *GroupManager) removePaid(id uuid.UUID) {
	kept := m.paid[:0]
	for _, p := range m.paid {
		if p != id {
			kept = append(kept, p)
		}
	}
	m.paid = kept
}
