package echoping_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/safeping/safeping-agent/pkg/echoping"
)

func TestParameterValidation(t *testing.T) {
	stack, _ := newFakeStack()
	engine := echoping.NewEngine(stack)

	bad := []echoping.Options{
		{Count: -1, Interval: 1, Size: 32, Timeout: 1},
		{Count: 1, Interval: 0, Size: 32, Timeout: 1},
		{Count: 1, Interval: 3601, Size: 32, Timeout: 1},
		{Count: 1, Interval: 1, Size: 3, Timeout: 1},
		{Count: 1, Interval: 1, Size: 257, Timeout: 1},
		{Count: 1, Interval: 1, Size: 32, Timeout: 0},
		{Count: 1, Interval: 1, Size: 32, Timeout: 31},
	}

	for _, opts := range bad {
		s := engine.NewSessionTarget("ping.test")
		err := s.Ping(opts)
		if !errors.Is(err, echoping.ErrInvalidValue) {
			t.Errorf("Options %+v: expected invalid value, got %v", opts, err)
		}
		if s.Sent() != 0 {
			t.Errorf("Options %+v: expected no packet sent", opts)
		}
		if s.LastError() != "invalid value" {
			t.Errorf("Options %+v: retained error %q", opts, s.LastError())
		}
		if s.State() != echoping.StateFailed {
			t.Errorf("Options %+v: expected failed state", opts)
		}
	}
}

func TestNotConnected(t *testing.T) {
	stack, _ := newFakeStack()
	stack.Status = fakeStatus{connected: false}
	engine := echoping.NewEngine(stack)

	s := engine.NewSession()
	err := s.PingTarget("ping.test", echoping.DefaultOptions())
	if !errors.Is(err, echoping.ErrNotConnected) {
		t.Errorf("Expected not connected, got %v", err)
	}
	if s.LastError() != "not connected" {
		t.Errorf("Retained error %q", s.LastError())
	}
}

func TestResolveFailureRetained(t *testing.T) {
	stack, _ := newFakeStack()
	stack.Resolver = &fakeResolver{err: errors.New("temporary failure in name resolution")}
	engine := echoping.NewEngine(stack)

	// eager resolution fails silently at construction and the first
	// Ping surfaces the retained error without sending anything
	s := engine.NewSessionTarget("no.such.host")
	if s.LastError() != "temporary failure in name resolution" {
		t.Fatalf("Retained error %q", s.LastError())
	}

	err := s.Ping(echoping.DefaultOptions())
	if err == nil || err.Error() != "temporary failure in name resolution" {
		t.Errorf("Expected retained resolution error, got %v", err)
	}
	if s.Sent() != 0 {
		t.Error("Expected no packet sent")
	}
}

func TestUnknownName(t *testing.T) {
	stack, _ := newFakeStack()
	engine := echoping.NewEngine(stack)

	s := engine.NewSession()
	err := s.PingTarget("no.such.host", echoping.DefaultOptions())
	if !errors.Is(err, echoping.ErrNameNotKnown) {
		t.Errorf("Expected name not known, got %v", err)
	}
}

func TestResolveCanonicalTarget(t *testing.T) {
	stack, _ := newFakeStack()
	engine := echoping.NewEngine(stack)

	s := engine.NewSessionTarget("ping.test")
	if s.Target() != "192.0.2.1" {
		t.Errorf("Canonical target %q", s.Target())
	}
	if s.LastError() != "" {
		t.Errorf("Unexpected retained error %q", s.LastError())
	}
}

type countingObserver struct {
	received []int
	waits    int
}

func (o *countingObserver) OnReceive(bytes int) {
	o.received = append(o.received, bytes)
}

func (o *countingObserver) OnWait() {
	o.waits++
}

func TestRunRepliesAndLoss(t *testing.T) {
	stack, tr := newFakeStack()
	const simRtt = 10 * time.Millisecond

	// reply to sequence numbers 1 and 3 with a simulated 10ms round
	// trip, drop sequence number 2
	tr.onSend = func(c *fakeConn, req []byte) {
		if requestSeq(req) != 2 {
			c.deliver(reflect(req, simRtt))
		}
	}

	engine := echoping.NewEngine(stack)
	s := engine.NewSessionTarget("ping.test")
	obs := &countingObserver{}
	s.SetObserver(obs)

	err := s.Ping(echoping.Options{Count: 3, Interval: 1, Size: 32, Timeout: 1})
	if err != nil {
		t.Fatalf("Ping failed: %s", err)
	}

	if s.Sent() != 3 || s.Received() != 2 || s.Lost() != 1 {
		t.Fatalf("Counters: sent=%d received=%d lost=%d", s.Sent(), s.Received(), s.Lost())
	}
	if s.Received()+s.Lost() != s.Sent() {
		t.Fatal("Expected received+lost == sent")
	}
	if s.State() != echoping.StateCompleted {
		t.Errorf("Expected completed state, got %d", s.State())
	}

	// both successes measured the same simulated round trip
	min, max, mean := s.MinTime(), s.MaxTime(), s.MeanTime()
	if min < 10 || min > 60 || max < 10 || max > 60 {
		t.Errorf("Round trip out of range: min=%f max=%f", min, max)
	}
	if !(min <= mean && mean <= max) {
		t.Errorf("Expected min <= mean <= max: %f %f %f", min, mean, max)
	}
	if max-min > 10 {
		t.Errorf("Expected min and max close to each other: %f %f", min, max)
	}

	// observer saw one result per sequence number
	if len(obs.received) != 3 {
		t.Fatalf("Observer calls: %d", len(obs.received))
	}
	// successful attempts report the reply payload byte count
	if obs.received[0] != 32 || obs.received[2] != 32 {
		t.Errorf("Observer byte counts: %v", obs.received)
	}
	// pacing between sends invoked the wait hook
	if obs.waits == 0 {
		t.Error("Expected wait ticks between sends")
	}
}

func TestRunZeroRoundTrips(t *testing.T) {
	stack, tr := newFakeStack()
	tr.onSend = func(c *fakeConn, req []byte) {
		c.deliver(reflect(req, 0))
	}

	engine := echoping.NewEngine(stack)
	s := engine.NewSessionTarget("ping.test")

	err := s.Ping(echoping.Options{Count: 2, Interval: 1, Size: 4, Timeout: 1})
	if err != nil {
		t.Fatalf("Ping failed: %s", err)
	}
	if s.Received() != 2 {
		t.Fatalf("Expected 2 replies, got %d", s.Received())
	}
	if s.MinTime() < 0 {
		t.Errorf("Expected non-negative samples, min=%f", s.MinTime())
	}
	if math.IsInf(s.MinTime(), 1) {
		t.Error("Expected min to be seeded")
	}
}

type stopOnWait struct {
	s *echoping.Session
}

func (o *stopOnWait) OnReceive(bytes int) {}

func (o *stopOnWait) OnWait() {
	o.s.Stop()
}

func TestStopDuringIdle(t *testing.T) {
	stack, tr := newFakeStack()
	tr.onSend = func(c *fakeConn, req []byte) {
		c.deliver(reflect(req, time.Millisecond))
	}

	engine := echoping.NewEngine(stack)
	s := engine.NewSessionTarget("ping.test")

	// stop from within the pacing wait: the run must return within one
	// tick, with no further sends
	s.SetObserver(&stopOnWait{s: s})

	done := make(chan error, 1)
	go func() {
		// count 0 runs until stopped, never on its own
		done <- s.Ping(echoping.Options{Count: 0, Interval: 1, Size: 32, Timeout: 1})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Ping failed: %s", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop was not honored")
	}

	if s.State() != echoping.StateStopped {
		t.Errorf("Expected stopped state, got %d", s.State())
	}
	if s.Sent() != 1 {
		t.Errorf("Expected no further sends after stop, sent=%d", s.Sent())
	}
}

func TestTransmitFailureAbortsRun(t *testing.T) {
	stack, tr := newFakeStack()
	sendErr := errors.New("network is down")
	tr.onOpen = func(c *fakeConn) {
		c.sendErr = sendErr
	}

	engine := echoping.NewEngine(stack)
	s := engine.NewSessionTarget("ping.test")

	err := s.Ping(echoping.Options{Count: 3, Interval: 1, Size: 32, Timeout: 1})
	if !errors.Is(err, sendErr) {
		t.Fatalf("Expected transmit error, got %v", err)
	}
	if s.Sent() != 0 {
		t.Errorf("Expected aborted run, sent=%d", s.Sent())
	}
	if s.LastError() != "network is down" {
		t.Errorf("Retained error %q", s.LastError())
	}
	if s.State() != echoping.StateFailed {
		t.Errorf("Expected failed state, got %d", s.State())
	}
}

func TestPingWithoutTarget(t *testing.T) {
	stack, _ := newFakeStack()
	engine := echoping.NewEngine(stack)

	s := engine.NewSession()
	err := s.Ping(echoping.DefaultOptions())
	if !errors.Is(err, echoping.ErrInvalidAddr) {
		t.Errorf("Expected invalid address, got %v", err)
	}
}

func TestCrossSessionPiggyback(t *testing.T) {
	stack, tr := newFakeStack()
	engine := echoping.NewEngine(stack)

	// session B sends first; its own socket never delivers anything.
	// When session A sends, B's reply is queued on A's socket ahead of
	// A's own, so A's receive loop must credit B's slot and keep
	// polling for its own reply.
	var bReq []byte
	tr.onSend = func(c *fakeConn, req []byte) {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		if bReq == nil {
			bReq = req
			return
		}
		c.deliver(reflect(bReq, 10*time.Millisecond))
		c.deliver(reflect(req, 5*time.Millisecond))
	}

	b := engine.NewSessionTarget("ping.test")
	a := engine.NewSessionTarget("ping.test")

	doneB := make(chan error, 1)
	go func() {
		doneB <- b.Ping(echoping.Options{Count: 1, Interval: 1, Size: 32, Timeout: 10})
	}()

	// B must have armed its slot and sent before A runs
	for {
		tr.mu.Lock()
		sent := bReq != nil
		tr.mu.Unlock()
		if sent {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := a.Ping(echoping.Options{Count: 1, Interval: 1, Size: 32, Timeout: 5}); err != nil {
		t.Fatalf("Session A ping failed: %s", err)
	}
	if err := <-doneB; err != nil {
		t.Fatalf("Session B ping failed: %s", err)
	}

	// A resolved B's pending reply without claiming it as its own
	if a.Received() != 1 || a.Lost() != 0 {
		t.Errorf("Session A counters: rx=%d lost=%d", a.Received(), a.Lost())
	}
	if b.Received() != 1 || b.Lost() != 0 {
		t.Errorf("Session B counters: rx=%d lost=%d", b.Received(), b.Lost())
	}
	if b.MinTime() < 10 {
		t.Errorf("Session B round trip too small: %f", b.MinTime())
	}
}

type blockingObserver struct {
	started chan struct{}
	hold    chan struct{}
	once    bool
}

func (o *blockingObserver) OnReceive(bytes int) {
	if !o.once {
		o.once = true
		close(o.started)
		<-o.hold
	}
}

func (o *blockingObserver) OnWait() {}

func TestSessionBusy(t *testing.T) {
	stack, tr := newFakeStack()
	tr.onSend = func(c *fakeConn, req []byte) {
		c.deliver(reflect(req, time.Millisecond))
	}
	engine := echoping.NewEngine(stack)
	s := engine.NewSessionTarget("ping.test")

	release := &blockingObserver{started: make(chan struct{}), hold: make(chan struct{})}
	s.SetObserver(release)

	done := make(chan error, 1)
	go func() {
		done <- s.Ping(echoping.Options{Count: 2, Interval: 1, Size: 32, Timeout: 1})
	}()

	<-release.started
	if err := s.Ping(echoping.DefaultOptions()); !errors.Is(err, echoping.ErrSessionBusy) {
		t.Errorf("Expected busy session, got %v", err)
	}
	close(release.hold)

	if err := <-done; err != nil {
		t.Fatalf("Ping failed: %s", err)
	}
}
