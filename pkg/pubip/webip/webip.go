// Gets public IP address from public web services
package webip

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

var providers = []string{
	"https://ident.me",
	"https://ifconfig.me/ip",
	"https://ifconfig.co/ip",
	"https://api.ipify.org",
}

func PublicIP() (net.IP, error) {
	for _, url := range providers {
		ip, err := fetch(url)
		if err != nil {
			// This provider failed, continue to next
			continue
		}
		return ip, nil
	}

	return nil, fmt.Errorf("all public IP providers failed")
}

func fetch(url string) (net.IP, error) {
	client := http.Client{
		Timeout: 5 * time.Second,
	}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Trim new lines and remove commas
	ipStr := strings.Trim(strings.Trim(string(body), "\n"), "\"")
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("invalid IP address %q", ipStr)
	}

	return ip, nil
}
