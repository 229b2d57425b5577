package bill

// groupSource exposes the committed groups the pool derives its state from.
type groupSource interface {
	committedGroups() []PaymentGroup
}

// AllocationPool answers how many units of each entry are still unassigned.
// Assignment is never stored: it is summed from the committed groups on every query.
type AllocationPool struct {
	entries []BillableEntry
	index   map[string]int
	groups  groupSource
}

func newAllocationPool(entries []BillableEntry, groups groupSource) *AllocationPool {
	p := &AllocationPool{groups: groups}
	p.SetEntries(entries)
	return p
}

// SetEntries replaces the entries, for example after an order-history refresh.
func (p *AllocationPool) SetEntries(entries []BillableEntry) {
	p.entries = append([]BillableEntry(nil), entries...)
	p.index = make(map[string]int, len(p.entries))
	for i, e := range p.entries {
		p.index[e.ID] = i
	}
}

// Entries returns a copy of all entries in source order.
func (p *AllocationPool) Entries() []BillableEntry {
	return append([]BillableEntry(nil), p.entries...)
}

func (p *AllocationPool) Entry(id string) (BillableEntry, bool) {
	i, ok := p.index[id]
	if !ok {
		return BillableEntry{}, false
	}
	return p.entries[i], true
}

// Assigned sums the quantity of entry id held by committed groups.
func (p *AllocationPool) Assigned(id string) int {
	assigned := 0
	for _, g := range p.groups.committedGroups() {
		for _, item := range g.Items {
			if item.Entry.ID == id {
				assigned += item.SelectedQuantity
			}
		}
	}
	return assigned
}

// MaxAssignable is the remaining quantity of entry id, 0 for unknown entries.
func (p *AllocationPool) MaxAssignable(id string) int {
	e, ok := p.Entry(id)
	if !ok {
		return 0
	}
	remaining := e.Quantity - p.Assigned(id)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AvailableEntries returns entries with remaining quantity, in source order.
func (p *AllocationPool) AvailableEntries() []BillableEntry {
	available := make([]BillableEntry, 0, len(p.entries))
	for _, e := range p.entries {
		if p.MaxAssignable(e.ID) > 0 {
			available = append(available, e)
		}
	}
	return available
}
