package ledger

import "cellcore/core/types"

// Entry is a single append-only journal record (spec.md section 3). The
// journal is write-once from the ledger's perspective: entries are only ever
// appended, never edited or removed.
type Entry struct {
	MemberID      [20]byte
	Delta         int64
	Reason        types.Reason
	Timestamp     int64
	CorrelationID string
}

// Observer receives the journal entries produced by one committed command,
// in commit order, mirroring the teacher's events.Emitter pattern
// (core/events/event.go) so storage adapters can subscribe without the
// ledger depending on them.
type Observer interface {
	Notify(entries []Entry)
}

// NoopObserver discards every notification. It is the default when no
// observer is supplied, matching the teacher's events.NoopEmitter.
type NoopObserver struct{}

func (NoopObserver) Notify([]Entry) {}

// multiObserver fans a single notification out to several observers.
type multiObserver []Observer

func (m multiObserver) Notify(entries []Entry) {
	for _, o := range m {
		o.Notify(entries)
	}
}
