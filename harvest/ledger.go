package harvest

import (
	"math"
	"sync"
	"time"
)

// Action is a state transition applied by Reduce.
type Action interface {
	action()
}

// EntryRecorded appends an entry to the log.
type EntryRecorded struct {
	Entry Entry
}

func (EntryRecorded) action() {}

// State is an immutable snapshot of the session. The log is append only and
// stored oldest first.
type State struct {
	log    []Entry
	lastID int64
}

// Reduce returns the state that results from applying action. The input
// state is never modified.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case EntryRecorded:
		next := make([]Entry, len(state.log), len(state.log)+1)
		copy(next, state.log)
		next = append(next, a.Entry)
		lastID := state.lastID
		if a.Entry.ID > lastID {
			lastID = a.Entry.ID
		}
		return State{log: next, lastID: lastID}
	default:
		return state
	}
}

// Entries returns the entries most recent first.
func (s State) Entries() []Entry {
	out := make([]Entry, len(s.log))
	for i, entry := range s.log {
		out[len(s.log)-1-i] = entry
	}
	return out
}

// Len returns the number of recorded entries.
func (s State) Len() int {
	return len(s.log)
}

// Find looks up an entry by ID.
func (s State) Find(id int64) (Entry, bool) {
	for _, entry := range s.log {
		if entry.ID == id {
			return entry, true
		}
	}
	return Entry{}, false
}

// Totals sums the log on every call.
func (s State) Totals() Totals {
	return SumEntries(s.log)
}

// SumEntries aggregates kilograms and payment over entries.
func SumEntries(entries []Entry) Totals {
	totals := Totals{Entries: len(entries)}
	for _, entry := range entries {
		totals.Kg += entry.Kg
		totals.Payment += entry.Total
	}
	return totals
}

// EntryTotal is the payment for kg at price, rounded half away from zero.
func EntryTotal(kg, pricePerKg float64) int64 {
	return int64(math.Round(kg * pricePerKg))
}

// Ledger owns the session state and serializes dispatches.
type Ledger struct {
	mu       sync.RWMutex
	state    State
	now      func() time.Time
	location *time.Location
}

// NewLedger creates an empty ledger. A nil location uses time.Local.
func NewLedger(now func() time.Time, location *time.Location) *Ledger {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.Local
	}
	return &Ledger{now: now, location: location}
}

// Record validates input, assigns an ID and appends the entry.
func (l *Ledger) Record(input EntryInput) (Entry, error) {
	input = NormalizeEntryInput(input)
	if err := ValidateEntryInput(input); err != nil {
		return Entry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	recordedAt := l.now().In(l.location)
	id := recordedAt.UnixMilli()
	if id <= l.state.lastID {
		id = l.state.lastID + 1
	}

	entry := Entry{
		ID:         id,
		Name:       input.Name,
		Kg:         input.Kg,
		PricePerKg: input.PricePerKg,
		Total:      EntryTotal(input.Kg, input.PricePerKg),
		Date:       FormatDate(recordedAt),
		RecordedAt: recordedAt,
	}
	l.state = Reduce(l.state, EntryRecorded{Entry: entry})
	return entry, nil
}

// Dispatch applies an action to the current state.
func (l *Ledger) Dispatch(action Action) {
	l.mu.Lock()
	l.state = Reduce(l.state, action)
	l.mu.Unlock()
}

// State returns the current snapshot.
func (l *Ledger) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Now returns the ledger clock in the ledger location.
func (l *Ledger) Now() time.Time {
	return l.now().In(l.location)
}
