// File: internal/transport/resolve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net"

	"github.com/momentics/hioload-lowlat/api"
)

// IfaceIP returns the first IPv4 address bound to the named interface, or ""
// when the interface does not exist or has no IPv4 address.
func IfaceIP(name string) string {
	if name == "" {
		return ""
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return ""
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok {
			if v4 := ipn.IP.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return ""
}

// ResolveIPv4 picks the address for cfg: explicit IP first, then the
// interface lookup. Listening sockets with neither fall back to 0.0.0.0.
// Only numeric addresses are accepted.
func ResolveIPv4(cfg api.SocketConfig) ([4]byte, error) {
	var out [4]byte
	ip := cfg.IP
	if ip == "" {
		ip = IfaceIP(cfg.Iface)
	}
	if ip == "" {
		if cfg.Listening && cfg.Iface == "" {
			return out, nil
		}
		return out, api.NewError(api.ErrCodeSetup, "address resolution failed").
			WithContext("cfg", cfg.String())
	}
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return out, api.NewError(api.ErrCodeSetup, "not a numeric IPv4 address").
			WithContext("ip", ip)
	}
	copy(out[:], parsed)
	return out, nil
}
