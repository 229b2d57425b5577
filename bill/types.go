package bill

import (
	"time"

	"github.com/google/uuid"
)

// Order is one already-fetched order of a table, normalized from the backend payload.
type Order struct {
	ID    string      // Backend order id
	Total string      // Order total as sent by the backend (decimal text)
	Lines []OrderLine // Product lines in the order they were sent
}

// OrderLine is one product line inside an order.
type OrderLine struct {
	ID        string   // Line id, unique inside the order
	ProductID string   // Menu product id
	Name      string   // Product display name
	Quantity  int      // Units ordered
	Subtotal  string   // Amount for all units, decimal text
	Options   []string // Selected option names
	Notes     string   // Free-text customization notes
	CreatedAt string   // Creation timestamp as sent by the backend
}

// BillableEntry is one product line available for allocation into payment groups.
type BillableEntry struct {
	ID        string   `json:"id"`
	OrderID   string   `json:"orderId"`
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Options   []string `json:"options,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
	Quantity  int      `json:"quantity"`
	Subtotal  float64  `json:"subtotal"`
}

// UnitSubtotal is recomputed from Subtotal and Quantity on every call.
func (e BillableEntry) UnitSubtotal() float64 {
	if e.Quantity <= 0 {
		return 0
	}
	return e.Subtotal / float64(e.Quantity)
}

// GroupItem is a quantity of one entry held by a payment group.
type GroupItem struct {
	Entry            BillableEntry `json:"entry"`
	SelectedQuantity int           `json:"selectedQuantity"`
}

// PaymentGroup is a named bundle of allocated quantities. Subtotal is frozen at creation.
type PaymentGroup struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Items     []GroupItem `json:"items"`
	Subtotal  float64     `json:"subtotal"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Mode selects how the accumulated total is settled.
type Mode string

const (
	ModeImmediate Mode = "immediate"
	ModeEven      Mode = "even"
	ModeGroups    Mode = "groups"
)

// ParseMode reports whether s names one of the settlement modes.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeImmediate, ModeEven, ModeGroups:
		return Mode(s), true
	}
	return "", false
}

// DefaultPeopleCount is the even split head count of a fresh session.
const DefaultPeopleCount = 2

// SplitConfiguration is the unit of persistence of a session.
// The diff tags match the persisted key names.
type SplitConfiguration struct {
	Mode         Mode           `json:"mode" diff:"mode"`
	PeopleCount  int            `json:"peopleCount" diff:"peopleCount"`
	Groups       []PaymentGroup `json:"groups" diff:"groups"`
	PaidGroupIDs []uuid.UUID    `json:"paidGroupIds" diff:"paidGroupIds"`
}

// DefaultConfiguration returns the configuration of a session with nothing persisted.
func DefaultConfiguration() SplitConfiguration {
	return SplitConfiguration{
		Mode:         ModeImmediate,
		PeopleCount:  DefaultPeopleCount,
		Groups:       []PaymentGroup{},
		PaidGroupIDs: []uuid.UUID{},
	}
}
