package bill

import "github.com/google/uuid"

// Settlement selects the active settlement mode and routes actions to the even split
// or the group manager. The state of every mode is kept when switching.
type Settlement struct {
	mode     Mode
	orders   []Order
	total    float64
	even     *EvenSplit
	groups   *GroupManager
	onChange func(SplitConfiguration)
}

func NewSettlement() *Settlement {
	return &Settlement{
		mode:   ModeImmediate,
		even:   NewEvenSplit(),
		groups: NewGroupManager(nil),
	}
}

// OnChange registers fn to receive the configuration after every change of a persisted field.
func (s *Settlement) OnChange(fn func(SplitConfiguration)) {
	s.onChange = fn
}

func (s *Settlement) changed() {
	if s.onChange != nil {
		s.onChange(s.Configuration())
	}
}

// SetOrders replaces the order history. Groups are untouched; staged quantities are
// kept except for entries the new history no longer has.
func (s *Settlement) SetOrders(orders []Order) {
	s.orders = append([]Order(nil), orders...)
	s.total = TotalAccumulated(orders)
	s.groups.pool.SetEntries(Aggregate(orders))
	s.groups.pruneStaged()
}

func (s *Settlement) Orders() []Order {
	return append([]Order(nil), s.orders...)
}

func (s *Settlement) Entries() []BillableEntry {
	return s.groups.pool.Entries()
}

// Total is the accumulated total of the order history.
func (s *Settlement) Total() float64 {
	return s.total
}

func (s *Settlement) Mode() Mode {
	return s.mode
}

// SetMode switches the active mode. Unknown modes are rejected.
func (s *Settlement) SetMode(mode Mode) bool {
	if _, ok := ParseMode(string(mode)); !ok {
		return false
	}
	if s.mode != mode {
		s.mode = mode
		s.changed()
	}
	return true
}

// AmountDue is what the active mode asks the diner to pay now.
func (s *Settlement) AmountDue() float64 {
	switch s.mode {
	case ModeEven:
		return s.PerPersonShare()
	case ModeGroups:
		return s.PendingAmount()
	default:
		return s.total
	}
}

// even split

func (s *Settlement) PeopleCount() int {
	return s.even.PeopleCount()
}

func (s *Settlement) IncrementPeople() {
	s.even.Increment()
	s.changed()
}

func (s *Settlement) DecrementPeople() bool {
	if !s.even.Decrement() {
		return false
	}
	s.changed()
	return true
}

// SetPeopleCount rejects counts below one.
func (s *Settlement) SetPeopleCount(n int) bool {
	if n == s.even.PeopleCount() {
		return n >= 1
	}
	if !s.even.SetPeopleCount(n) {
		return false
	}
	s.changed()
	return true
}

func (s *Settlement) PerPersonShare() float64 {
	return s.even.Share(s.total)
}

// groups

func (s *Settlement) Pool() *AllocationPool {
	return s.groups.pool
}

func (s *Settlement) AvailableEntries() []BillableEntry {
	return s.groups.pool.AvailableEntries()
}

func (s *Settlement) MaxAssignable(entryID string) int {
	return s.groups.pool.MaxAssignable(entryID)
}

func (s *Settlement) StageQuantity(entryID string, quantity int) bool {
	return s.groups.StageQuantity(entryID, quantity)
}

func (s *Settlement) Staged() map[string]int {
	return s.groups.Staged()
}

func (s *Settlement) ClearStaged() {
	s.groups.ClearStaged()
}

// CreateGroup commits selections, or the staged selection when selections is nil.
func (s *Settlement) CreateGroup(name string, selections map[string]int) ([]PaymentGroup, bool) {
	var (
		groups []PaymentGroup
		ok     bool
	)
	if selections == nil {
		groups, ok = s.groups.CommitStaged(name)
	} else {
		groups, ok = s.groups.CreateGroup(name, selections)
	}
	if ok {
		s.changed()
	}
	return groups, ok
}

func (s *Settlement) DeleteGroup(id uuid.UUID) bool {
	if !s.groups.DeleteGroup(id) {
		return false
	}
	s.changed()
	return true
}

func (s *Settlement) TogglePaid(id uuid.UUID) (bool, bool) {
	paid, ok := s.groups.TogglePaid(id)
	if ok {
		s.changed()
	}
	return paid, ok
}

func (s *Settlement) IsPaid(id uuid.UUID) bool {
	return s.groups.IsPaid(id)
}

func (s *Settlement) Groups() []PaymentGroup {
	return s.groups.Groups()
}

func (s *Settlement) Group(id uuid.UUID) (PaymentGroup, bool) {
	return s.groups.Group(id)
}

func (s *Settlement) PaidGroupIDs() []uuid.UUID {
	return s.groups.PaidGroupIDs()
}

func (s *Settlement) PaidAmount() float64 {
	return s.groups.PaidAmount()
}

func (s *Settlement) PendingAmount() float64 {
	return s.groups.PendingAmount(s.total)
}

// Configuration snapshots the persisted fields.
func (s *Settlement) Configuration() SplitConfiguration {
	return SplitConfiguration{
		Mode:         s.mode,
		PeopleCount:  s.even.PeopleCount(),
		Groups:       s.groups.Groups(),
		PaidGroupIDs: s.groups.PaidGroupIDs(),
	}
}

// Restore applies a persisted configuration without notifying OnChange.
// Invalid mode or head count fall back to their defaults.
func (s *Settlement) Restore(cfg SplitConfiguration) {
	if mode, ok := ParseMode(string(cfg.Mode)); ok {
		s.mode = mode
	} else {
		s.mode = ModeImmediate
	}
	if !s.even.SetPeopleCount(cfg.PeopleCount) {
		s.even.SetPeopleCount(DefaultPeopleCount)
	}
	s.groups.Restore(cfg.Groups, cfg.PaidGroupIDs)
}
