// Package sortrec stable-sorts an already-pruned recording by
// timestamp, breaking ties by sequence number.
package sortrec

import (
	"sort"

	"github.com/git-ecosystem/proctrace/internal/event"
)

// Sort stably sorts events in place by (ts, seq) ascending. Stability
// matters so that two events sharing both ts and seq (which spec
// treats as impossible, but we don't enforce that here) keep their
// original relative order rather than shuffling unpredictably.
func Sort(events []event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return event.Less(events[i], events[j])
	})
}
