package netstack

import (
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/safeping/safeping-agent/pkg/gate"
	"golang.org/x/sys/unix"
)

// Host returns a Stack backed by the host network stack. The gate must be
// the single process-wide instance, shared with everything else touching
// the stack.
func Host(g *gate.Gate) *Stack {
	return &Stack{
		Gate:      g,
		Status:    hostStatus{},
		Resolver:  net.DefaultResolver,
		Transport: &hostTransport{},
		Now:       time.Now,
	}
}

const ip6HeaderLen = 40

type hostStatus struct{}

func (hostStatus) LocalAddr() netip.Addr {
	ifaces, err := net.Interfaces()
	if err != nil {
		return netip.Addr{}
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, ok := netip.AddrFromSlice(ipnet.IP)
			if ok && addr.IsGlobalUnicast() {
				return addr.Unmap()
			}
		}
	}

	return netip.Addr{}
}

func (s hostStatus) IsConnected() bool {
	return s.LocalAddr().IsValid()
}

// hostTransport opens raw ICMP datagram sockets. Socket identifiers are
// allocated from a fixed pool of MaxConns slots, so the reply correlation
// table can be indexed by identifier directly.
type hostTransport struct {
	mu   sync.Mutex
	used [MaxConns]bool
}

func (t *hostTransport) Open(family Family) (RawConn, error) {
	id := t.acquireID()
	if id < 0 {
		return nil, ErrNoFreeConn
	}

	domain := unix.AF_INET
	proto := unix.IPPROTO_ICMP
	if family == FamilyIPv6 {
		domain = unix.AF_INET6
		proto = unix.IPPROTO_ICMPV6
	}

	fd, err := unix.Socket(domain, unix.SOCK_RAW, proto)
	if err != nil {
		t.releaseID(id)
		return nil, err
	}

	return &hostConn{owner: t, fd: fd, id: id, family: family}, nil
}

func (t *hostTransport) acquireID() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.used {
		if !t.used[i] {
			t.used[i] = true
			return i
		}
	}
	return -1
}

func (t *hostTransport) releaseID(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id >= 0 && id < MaxConns {
		t.used[id] = false
	}
}

type hostConn struct {
	owner  *hostTransport
	fd     int
	id     int
	family Family
}

func (c *hostConn) ID() int {
	return c.id
}

func (c *hostConn) SetNonblock() error {
	return unix.SetNonblock(c.fd, true)
}

func (c *hostConn) SendTo(b []byte, dst netip.Addr) (int, error) {
	var sa unix.Sockaddr
	if c.family == FamilyIPv6 {
		sa = &unix.SockaddrInet6{Addr: dst.As16()}
	} else {
		sa = &unix.SockaddrInet4{Addr: dst.As4()}
	}

	err := unix.Sendto(c.fd, b, 0, sa)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *hostConn) RecvFrom(b []byte) (int, error) {
	// Raw IPv4 sockets deliver datagrams with the IP header included,
	// raw ICMPv6 sockets do not. Readers expect a fixed 40 byte IPv6
	// header in front of the ICMP message, so prepend a zeroed one.
	off := 0
	if c.family == FamilyIPv6 && len(b) > ip6HeaderLen {
		off = ip6HeaderLen
	}

	n, _, err := unix.Recvfrom(c.fd, b[off:], 0)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	if off > 0 {
		for i := 0; i < off; i++ {
			b[i] = 0
		}
	}
	return n + off, nil
}

func (c *hostConn) Close() error {
	err := unix.Close(c.fd)
	c.owner.releaseID(c.id)
	return err
}
