package echoping

import (
	"encoding/binary"

	"github.com/safeping/safeping-agent/pkg/netstack"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
)

// buildEchoRequest builds one echo request datagram. The identifier is the
// raw socket identifier in use, which is how replies are later attributed
// to a session even when read from another session's socket. The payload
// starts with the send timestamp (microsecond tick, wraps); the rest is
// filled with an ascending byte pattern, only length and checksum matter.
func buildEchoRequest(family netstack.Family, id int, seq uint16, size int, sentMicros uint32) ([]byte, error) {
	payload := make([]byte, size)
	binary.BigEndian.PutUint32(payload, sentMicros)
	for i := timeSliceLength; i < size; i++ {
		payload[i] = byte(i)
	}

	msg := &icmp.Message{
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  int(seq),
			Data: payload,
		},
	}

	if family == netstack.FamilyIPv6 {
		// ICMPv6 checksum needs the pseudo header, the stack fills it
		// in on raw ICMPv6 sockets
		msg.Type = ipv6.ICMPTypeEchoRequest
	} else {
		msg.Type = ipv4.ICMPTypeEcho
	}

	return msg.Marshal(nil)
}

type echoReply struct {
	id         int
	seq        uint16
	sentMicros uint32
	// payload byte count, what the observer hook reports
	bytes int
}

// parseEchoReply parses a raw inbound datagram. Anything that is not an
// echo reply of the active family, carries an identifier outside the
// transport's identifier pool, or is shorter than header plus timestamp,
// is ignored (ok=false), never an error.
func parseEchoReply(family netstack.Family, buf []byte) (echoReply, bool) {
	var rep echoReply

	// strip the IP header: variable length for IPv4, fixed for IPv6
	var offset, proto int
	if family == netstack.FamilyIPv6 {
		offset = ip6HeaderLength
		proto = protocolIPv6ICMP
	} else {
		if len(buf) < 1 {
			return rep, false
		}
		offset = int(buf[0]&0x0f) * 4
		proto = protocolICMP
	}
	if len(buf) < offset {
		return rep, false
	}

	msg, err := icmp.ParseMessage(proto, buf[offset:])
	if err != nil {
		return rep, false
	}

	if msg.Type != ipv4.ICMPTypeEchoReply && msg.Type != ipv6.ICMPTypeEchoReply {
		return rep, false
	}

	echo, ok := msg.Body.(*icmp.Echo)
	if !ok || len(echo.Data) < timeSliceLength {
		return rep, false
	}

	if echo.ID < 0 || echo.ID >= netstack.MaxConns {
		return rep, false
	}

	rep.id = echo.ID
	rep.seq = uint16(echo.Seq)
	rep.sentMicros = binary.BigEndian.Uint32(echo.Data)
	rep.bytes = len(echo.Data)
	return rep, true
}
