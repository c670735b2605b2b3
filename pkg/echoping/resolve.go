package echoping

import (
	"context"
	"net/netip"

	"github.com/safeping/safeping-agent/pkg/netstack"
)

// resolve turns a hostname or literal address into the session's canonical
// textual target, address family and binary address. Resolver queries run
// under the gate; parsing the result does not need it. When the resolver
// returns multiple candidates only the first one is used.
func (s *Session) resolve(target string) error {
	st := s.engine.stack

	// the stack is known to crash on resolution attempts while
	// unconfigured, bail out before touching it
	if !st.Status.IsConnected() || !st.Status.LocalAddr().IsValid() {
		return ErrNotConnected
	}

	s.stm.SetState(StateResolving)

	var addrs []netip.Addr
	var err error
	st.Gate.With(func() {
		addrs, err = st.Resolver.LookupNetIP(context.Background(), "ip", target)
	})
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return ErrNameNotKnown
	}

	s.target = addrs[0].Unmap().String()

	// building the binary socket address from the canonical text is a
	// separate step with its own failure mode
	addr, err := netip.ParseAddr(s.target)
	if err != nil {
		return ErrInvalidAddr
	}

	if addr.Is4() {
		s.family = netstack.FamilyIPv4
	} else {
		s.family = netstack.FamilyIPv6
	}
	s.addr = addr

	return nil
}
