package echoping

import (
	"errors"
	"time"

	"github.com/safeping/safeping-agent/pkg/netstack"
)

// PingTarget resolves target and runs Ping with the given options.
func (s *Session) PingTarget(target string, opts Options) error {
	if !s.run.TryLock() {
		return ErrSessionBusy
	}
	defer s.run.TryUnlock()

	if err := s.resolve(target); err != nil {
		return s.fail(err)
	}
	return s.ping(opts)
}

// Ping runs one ping against the session's bound target. It blocks for
// the whole run and returns nil when the run completed (losses are not
// errors) or was stopped, an error on any structural failure: bad
// parameters, resolution failure, socket or transport failure. Counters
// and statistics are reset at the start of every call.
func (s *Session) Ping(opts Options) error {
	if !s.run.TryLock() {
		return ErrSessionBusy
	}
	defer s.run.TryUnlock()

	if !s.addr.IsValid() {
		// eager resolution at construction may have failed, surface
		// its retained error now
		if s.lastErr != "" {
			s.stm.SetState(StateFailed)
			return errors.New(s.lastErr)
		}
		return s.fail(ErrInvalidAddr)
	}
	return s.ping(opts)
}

func (s *Session) fail(err error) error {
	s.lastErr = err.Error()
	s.stm.SetState(StateFailed)
	return err
}

func (s *Session) ping(opts Options) error {
	st := s.engine.stack

	if !st.Status.IsConnected() || !st.Status.LocalAddr().IsValid() {
		return s.fail(ErrNotConnected)
	}

	if !opts.valid() {
		return s.fail(ErrInvalidValue)
	}

	s.size = opts.Size
	s.stats.reset()
	s.stopped.Store(false)
	s.stm.SetState(StateRunning)

	// socket creation and non-blocking configuration both touch the
	// stack, one gate section covers them
	var conn netstack.RawConn
	var err error
	st.Gate.With(func() {
		conn, err = st.Transport.Open(s.family)
		if err != nil {
			return
		}
		if nberr := conn.SetNonblock(); nberr != nil {
			conn.Close()
			conn = nil
			err = nberr
		}
	})
	if err != nil {
		return s.fail(err)
	}

	// released unconditionally, on every return path below
	defer st.Gate.With(func() { conn.Close() })

	interval := time.Duration(opts.Interval) * time.Second
	timeout := time.Duration(opts.Timeout) * time.Second

	for seq := uint16(1); (opts.Count == 0 || int(seq) <= opts.Count) && !s.stopped.Load(); seq++ {
		sendTime := st.Now()

		if err := s.send(conn, seq, opts.Size); err != nil {
			// a build or transmit failure aborts the whole run
			return s.fail(err)
		}
		s.stats.sent++

		bytes := s.waitReply(conn, timeout)

		if rtt := s.engine.replies.elapsed(conn.ID()); rtt > 0 {
			s.stats.addSample(float64(rtt.Microseconds()) / 1000.0)
		} else {
			s.stats.addLoss()
		}
		s.notifyReceive(bytes)

		if opts.Count == 0 || int(seq) < opts.Count {
			// pace the next send, rechecking the stop flag every
			// tick so Stop is honored promptly
			for st.Now().Sub(sendTime) < interval && !s.stopped.Load() {
				s.notifyWait()
				time.Sleep(waitTick)
			}
		}
	}

	if s.stopped.Load() {
		s.stm.SetState(StateStopped)
	} else {
		s.stm.SetState(StateCompleted)
	}
	return nil
}

func (s *Session) send(conn netstack.RawConn, seq uint16, size int) error {
	st := s.engine.stack

	pkt, err := buildEchoRequest(s.family, conn.ID(), seq, size, micros(st.Now()))
	if err != nil {
		return err
	}

	// arm the slot before the datagram can hit the wire, so a concurrent
	// receiver cannot observe a stale match
	s.engine.replies.arm(conn.ID(), seq)

	var n int
	st.Gate.With(func() {
		n, err = conn.SendTo(pkt, s.addr)
	})
	if err != nil {
		return err
	}
	if n != len(pkt) {
		return ErrSendFailed
	}
	return nil
}

// waitReply polls the socket until the session's reply slot holds a round
// trip measurement or the timeout elapses. Each poll attempt is one
// non-blocking read under the gate. Replies belonging to other sessions
// are credited to their slots on the way (the owning session's own poll
// will observe them); stale sequence numbers are dropped silently. The
// return value is the payload byte count of the last successfully parsed
// datagram, 0 if none was read.
func (s *Session) waitReply(conn netstack.RawConn, timeout time.Duration) int {
	st := s.engine.stack
	buf := make([]byte, recvBufferSize)
	start := st.Now()
	bytes := 0

	for {
		// another session may have picked up our reply and done the
		// job for us already
		if s.engine.replies.elapsed(conn.ID()) > 0 {
			return bytes
		}

		var n int
		var err error
		st.Gate.With(func() {
			n, err = conn.RecvFrom(buf)
		})
		if err != nil {
			if err == netstack.ErrWouldBlock && st.Now().Sub(start) < timeout {
				time.Sleep(pollTick)
				continue
			}
			// timeout, or a non-retryable receive error treated the
			// same way: this attempt is over, the caller counts it
			// as one lost sample
			return bytes
		}

		rep, ok := parseEchoReply(s.family, buf[:n])
		if !ok {
			continue
		}
		bytes = rep.bytes

		rtt := uint64(micros(st.Now()) - rep.sentMicros)
		if rep.id == conn.ID() {
			if s.engine.replies.record(rep.id, rep.seq, rtt) {
				return bytes
			}
			// stale sequence number, its timeout has been reported
			// already
		} else {
			// a reply for another concurrent session: fill in its
			// slot and keep polling for our own
			s.engine.replies.record(rep.id, rep.seq, rtt)
		}
	}
}

func micros(t time.Time) uint32 {
	return uint32(t.UnixMicro())
}
