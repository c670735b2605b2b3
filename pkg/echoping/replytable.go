package echoping

import (
	"sync/atomic"
	"time"

	"github.com/safeping/safeping-agent/pkg/netstack"
)

// replyTable is the cross-session reply correlation table: one slot per
// raw socket identifier, shared by every session on the same engine. A
// slot records the sequence number currently expected for that identifier
// and the measured round trip once the matching reply has been seen;
// whichever session happens to read a reply fills the owning slot.
//
// Each slot is a single word packing (seq << 48 | elapsedMicros), so the
// round trip value is never observable apart from the sequence number it
// belongs to. The table itself is lock free and best effort: concurrent
// sessions write distinct slots, and a reply may be claimed by whichever
// poller reads it first. It is not a linearizable structure.
type replyTable struct {
	slots [netstack.MaxConns]atomic.Uint64
}

const elapsedMask = (uint64(1) << 48) - 1

func pack(seq uint16, elapsedMicros uint64) uint64 {
	return uint64(seq)<<48 | elapsedMicros&elapsedMask
}

// arm overwrites the slot at the start of a send: expected sequence set,
// round trip cleared. Must happen before the datagram hits the wire so a
// concurrent receiver cannot observe a stale match.
func (t *replyTable) arm(id int, seq uint16) {
	t.slots[id].Store(pack(seq, 0))
}

// record stores the measured round trip, but only when the slot still
// expects exactly this sequence number. A reply matching an older sequence
// number is ignored, its timeout has most probably been reported already.
func (t *replyTable) record(id int, seq uint16, elapsedMicros uint64) bool {
	cur := t.slots[id].Load()
	if uint16(cur>>48) != seq {
		return false
	}
	if elapsedMicros == 0 {
		// zero means "no reply yet", never store it as a measurement
		elapsedMicros = 1
	}
	t.slots[id].Store(pack(seq, elapsedMicros))
	return true
}

// elapsed returns the measured round trip for the identifier's current
// sequence number, 0 while no reply has been observed.
func (t *replyTable) elapsed(id int) time.Duration {
	return time.Duration(t.slots[id].Load()&elapsedMask) * time.Microsecond
}
