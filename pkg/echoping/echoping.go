// echoping is a concurrency safe ICMP echo ("ping") client for a single
// shared network stack. Independent callers run their own sessions, each
// against its own target, over raw sockets that are not safe for
// concurrent use: every call into the stack is serialized through the
// shared gate, and replies are correlated across sessions through one
// shared table, so any session's receive call can resolve any other
// session's pending reply.
package echoping

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/safeping/safeping-agent/pkg/netstack"
	"github.com/safeping/safeping-agent/pkg/slock"
	"github.com/safeping/safeping-agent/pkg/state"
)

// Engine owns the stack collaborators and the reply correlation table
// shared by all of its sessions. Create one per process (per stack).
type Engine struct {
	stack   *netstack.Stack
	replies replyTable
}

func NewEngine(stack *netstack.Stack) *Engine {
	if stack.Now == nil {
		stack.Now = time.Now
	}
	return &Engine{stack: stack}
}

// Options are the run parameters of one Ping call. Interval and Timeout
// are whole seconds.
type Options struct {
	Count    int // 0 means unbounded, run until Stop
	Interval int
	Size     int
	Timeout  int
}

func DefaultOptions() Options {
	return Options{
		Count:    DefaultCount,
		Interval: DefaultInterval,
		Size:     DefaultSize,
		Timeout:  DefaultTimeout,
	}
}

func (o Options) valid() bool {
	return o.Count >= 0 &&
		o.Interval >= MinInterval && o.Interval <= MaxInterval &&
		o.Size >= MinSize && o.Size <= MaxSize &&
		o.Timeout >= MinTimeout && o.Timeout <= MaxTimeout
}

// Session is one logical ping run owner. It is owned exclusively by the
// caller that created it and must not be shared across goroutines; Stop
// is the only method safe to call while a Ping is in progress.
type Session struct {
	engine   *Engine
	observer Observer

	run     slock.AtomicServiceLock
	stm     state.StateMachine
	stopped atomic.Bool

	family netstack.Family
	addr   netip.Addr
	target string

	size    int
	stats   runStats
	lastErr string
}

// NewSession creates a session with no target bound. The target is given
// later, to PingTarget.
func (e *Engine) NewSession() *Session {
	s := &Session{engine: e}
	s.stats.reset()
	return s
}

// NewSessionTarget creates a session and resolves the target eagerly.
// A resolution failure is not returned here: it is retained and surfaced
// by the first Ping call, which will not send a single packet.
func (e *Engine) NewSessionTarget(target string) *Session {
	s := e.NewSession()
	if err := s.resolve(target); err != nil {
		s.lastErr = err.Error()
		s.stm.SetState(StateFailed)
	}
	return s
}

// SetObserver installs the intermediate result hooks. Must not be called
// while a run is in progress.
func (s *Session) SetObserver(o Observer) {
	s.observer = o
}

// Stop requests cooperative termination of an in-progress run. It only
// flips a flag and never blocks; the run loop honors it within one tick.
// Idempotent, and the only session method meant to be called from another
// goroutine.
func (s *Session) Stop() {
	s.stopped.Store(true)
}

func (s *Session) State() uint32 {
	return s.stm.GetState()
}

// Target returns the canonical textual address of the resolved target
func (s *Session) Target() string {
	return s.target
}

// Size returns the configured payload size of the current (last) run
func (s *Session) Size() int {
	return s.size
}

func (s *Session) Sent() uint32 {
	return s.stats.sent
}

func (s *Session) Received() uint32 {
	return s.stats.received
}

func (s *Session) Lost() uint32 {
	return s.stats.lost
}

// Elapsed returns the last sample's round trip in milliseconds, 0 when
// the last attempt was lost
func (s *Session) Elapsed() float64 {
	return s.stats.last
}

// MinTime returns the smallest round trip in milliseconds. Before any
// reply has arrived it is +Inf, meaning "no data".
func (s *Session) MinTime() float64 {
	return s.stats.min
}

func (s *Session) MaxTime() float64 {
	return s.stats.max
}

func (s *Session) MeanTime() float64 {
	return s.stats.mean
}

// VarTime returns the running variance accumulator of the round trip
// times, 0 while fewer than two replies have arrived
func (s *Session) VarTime() float64 {
	return s.stats.varAcc
}

// LastError returns the retained text of the most recent failure, "" when
// none has happened yet. It is overwritten only by the next failing path.
func (s *Session) LastError() string {
	return s.lastErr
}

func (s *Session) notifyReceive(bytes int) {
	if s.observer != nil {
		s.observer.OnReceive(bytes)
	}
}

func (s *Session) notifyWait() {
	if s.observer != nil {
		s.observer.OnWait()
	}
}
