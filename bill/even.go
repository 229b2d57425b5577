package bill

// PerPersonShare divides total evenly. A non-positive head count yields 0.
// No rounding is applied.
func PerPersonShare(total float64, peopleCount int) float64 {
	if peopleCount <= 0 {
		return 0
	}
	return total / float64(peopleCount)
}

// EvenSplit holds the head count of the even split mode.
type EvenSplit struct {
	peopleCount int
}

func NewEvenSplit() *EvenSplit {
	return &EvenSplit{peopleCount: DefaultPeopleCount}
}

func (e *EvenSplit) PeopleCount() int {
	return e.peopleCount
}

func (e *EvenSplit) Increment() {
	e.peopleCount++
}

// Decrement lowers the head count, never below 1. It reports false when nothing changed.
func (e *EvenSplit) Decrement() bool {
	if e.peopleCount <= 1 {
		return false
	}
	e.peopleCount--
	return true
}

// SetPeopleCount rejects counts below 1.
func (e *EvenSplit) SetPeopleCount(n int) bool {
	if n < 1 {
		return false
	}
	e.peopleCount = n
	return true
}

func (e *EvenSplit) Share(total float64) float64 {
	return PerPersonShare(total, e.peopleCount)
}
