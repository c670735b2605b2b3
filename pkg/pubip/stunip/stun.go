// stunip gets public IP from public STUN servers
package stunip

import (
	"fmt"
	"net"

	"github.com/pion/stun"
)

var lastGoodIdx int

// PublicIP walks the STUN server list starting from the last server
// that answered. A server that responds stays first for the next call,
// a failing one is skipped on retries.
func PublicIP() (net.IP, error) {
	for i := 0; i < len(stunServers); i++ {
		ip, err := checkStunServer(stunServers[lastGoodIdx])

		if err == nil {
			return ip, nil
		}

		lastGoodIdx++
		if lastGoodIdx >= len(stunServers) {
			lastGoodIdx = 0
		}
	}
	return net.IP{}, fmt.Errorf("could not get public ip address")
}

func checkStunServer(srv string) (net.IP, error) {
	var ip net.IP
	var err error

	callback := func(res stun.Event) {
		if res.Error != nil {
			err = res.Error
			return
		}

		// Decoding XOR-MAPPED-ADDRESS attribute from message.
		var xorAddr stun.XORMappedAddress
		if err = xorAddr.GetFrom(res.Message); err != nil {
			return
		}
		ip = xorAddr.IP
	}

	// By default we want an IPv4, thus "udp"
	c, err := stun.Dial("udp", srv)
	if err != nil {
		return ip, err
	}
	defer c.Close()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	if err := c.Do(message, callback); err != nil {
		return ip, err
	}

	return ip, err
}
