// netstack declares the external network stack collaborators consumed by
// the echo engine: connectivity status, name resolver and the raw ICMP
// datagram transport. Implementations are plain function call interfaces,
// the engine does not care what is behind them.
//
// None of the collaborators is expected to be reentrant. Every call into
// them must be made while holding the stack's Gate.
package netstack

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/safeping/safeping-agent/pkg/gate"
)

// MaxConns is the maximum number of concurrently open raw sockets the
// stack supports. Transport identifiers are always in [0, MaxConns).
const MaxConns = 16

type Family int

const (
	FamilyIPv4 = Family(4)
	FamilyIPv6 = Family(6)
)

var (
	// ErrWouldBlock is returned by RawConn.RecvFrom when no datagram is
	// pending on a non-blocking socket
	ErrWouldBlock = errors.New("would block")
	ErrNoFreeConn = errors.New("no free raw socket identifiers")
)

// Status reports the host connectivity state. The stack is known to
// misbehave when used unconfigured, so callers check this first.
type Status interface {
	IsConnected() bool
	LocalAddr() netip.Addr
}

// Resolver is the host name resolver. Satisfied by net.DefaultResolver.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// RawConn is one open raw ICMP datagram socket.
type RawConn interface {
	// ID is the socket identifier, unique among open sockets,
	// always in [0, MaxConns)
	ID() int
	SetNonblock() error
	SendTo(b []byte, dst netip.Addr) (int, error)
	// RecvFrom returns ErrWouldBlock when nothing is pending
	RecvFrom(b []byte) (int, error)
	Close() error
}

type Transport interface {
	Open(family Family) (RawConn, error)
}

// Stack bundles the collaborators with the serialization gate and the
// clock. One Stack is shared by all ping sessions in the process.
type Stack struct {
	Gate      *gate.Gate
	Status    Status
	Resolver  Resolver
	Transport Transport

	// Now is the monotonic clock used for pacing and round-trip
	// timing. Defaults to time.Now.
	Now func() time.Time
}
