// gate serializes calls into the shared, non-reentrant network stack.
package gate

import "sync"

// Gate is the process-wide mutual exclusion lock guarding every call into
// the shared network stack primitives: name resolution, raw socket create
// and close, datagram send and receive. The underlying stack is not
// reentrant, so every such call must be made while holding the gate.
//
// Construct one gate at process start and pass the same handle to every
// component touching the stack. Do not copy.
type Gate struct {
	mu sync.Mutex
}

func New() *Gate {
	return &Gate{}
}

func (g *Gate) Lock() {
	g.mu.Lock()
}

func (g *Gate) Unlock() {
	g.mu.Unlock()
}

// With runs fn while holding the gate
func (g *Gate) With(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}
