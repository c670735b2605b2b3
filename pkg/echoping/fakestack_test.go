package echoping_test

import (
	"context"
	"encoding/binary"
	"net/netip"
	"sync"
	"time"

	"github.com/safeping/safeping-agent/pkg/gate"
	"github.com/safeping/safeping-agent/pkg/netstack"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// A simulated network stack: scripted resolver, scripted per-connection
// reply behavior, everything delivered through the same RawConn interface
// the host transport implements.

type fakeStatus struct {
	connected bool
}

func (f fakeStatus) IsConnected() bool {
	return f.connected
}

func (f fakeStatus) LocalAddr() netip.Addr {
	if !f.connected {
		return netip.Addr{}
	}
	return netip.MustParseAddr("192.0.2.100")
}

type fakeResolver struct {
	hosts map[string][]netip.Addr
	err   error
}

func (f *fakeResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hosts[host], nil
}

// onSend inspects the request just transmitted on a connection and may
// deliver replies into any connection's receive queue
type sendHook func(c *fakeConn, req []byte)

type fakeTransport struct {
	mu     sync.Mutex
	nextID int
	conns  []*fakeConn
	onSend sendHook
	onOpen func(c *fakeConn)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (t *fakeTransport) Open(family netstack.Family) (netstack.RawConn, error) {
	t.mu.Lock()
	c := &fakeConn{owner: t, id: t.nextID, rx: make(chan []byte, 64)}
	t.nextID++
	t.conns = append(t.conns, c)
	hook := t.onOpen
	t.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	return c, nil
}

type fakeConn struct {
	owner   *fakeTransport
	id      int
	rx      chan []byte
	sent    int
	sendErr error
}

func (c *fakeConn) ID() int {
	return c.id
}

func (c *fakeConn) SetNonblock() error {
	return nil
}

func (c *fakeConn) SendTo(b []byte, _ netip.Addr) (int, error) {
	if c.sendErr != nil {
		return 0, c.sendErr
	}

	c.owner.mu.Lock()
	c.sent++
	c.owner.mu.Unlock()

	req := append([]byte(nil), b...)
	if c.owner.onSend != nil {
		c.owner.onSend(c, req)
	}
	return len(b), nil
}

func (c *fakeConn) sentCount() int {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	return c.sent
}

func (c *fakeConn) RecvFrom(b []byte) (int, error) {
	select {
	case pkt := <-c.rx:
		return copy(b, pkt), nil
	default:
		return 0, netstack.ErrWouldBlock
	}
}

func (c *fakeConn) Close() error {
	return nil
}

func (c *fakeConn) deliver(pkt []byte) {
	c.rx <- pkt
}

// reflect turns a captured echo request into an echo reply datagram the
// IPv4 codec accepts, with the embedded send timestamp skewed back so the
// measured round trip comes out close to rtt.
func reflect(req []byte, rtt time.Duration) []byte {
	msg, err := icmp.ParseMessage(1, req)
	if err != nil {
		panic(err)
	}
	echo := msg.Body.(*icmp.Echo)

	data := append([]byte(nil), echo.Data...)
	sent := binary.BigEndian.Uint32(data)
	binary.BigEndian.PutUint32(data, sent-uint32(rtt.Microseconds()))

	rep, err := (&icmp.Message{
		Type: ipv4.ICMPTypeEchoReply,
		Code: 0,
		Body: &icmp.Echo{ID: echo.ID, Seq: echo.Seq, Data: data},
	}).Marshal(nil)
	if err != nil {
		panic(err)
	}

	hdr := make([]byte, 20)
	hdr[0] = 0x45
	return append(hdr, rep...)
}

func requestSeq(req []byte) int {
	msg, err := icmp.ParseMessage(1, req)
	if err != nil {
		panic(err)
	}
	return msg.Body.(*icmp.Echo).Seq
}

func newFakeStack() (*netstack.Stack, *fakeTransport) {
	tr := newFakeTransport()
	return &netstack.Stack{
		Gate:   gate.New(),
		Status: fakeStatus{connected: true},
		Resolver: &fakeResolver{hosts: map[string][]netip.Addr{
			"ping.test": {netip.MustParseAddr("192.0.2.1")},
		}},
		Transport: tr,
		Now:       time.Now,
	}, tr
}
