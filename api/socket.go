// File: api/socket.go
// Author: momentics <momentics@gmail.com>
//
// Socket configuration DTO consumed by socket setup.

package api

import "fmt"

// Protocol selects the transport protocol of a socket.
type Protocol int

const (
	ProtocolTCP Protocol = iota
	ProtocolUDP
)

func (p Protocol) String() string {
	if p == ProtocolUDP {
		return "udp"
	}
	return "tcp"
}

// SocketConfig describes one endpoint. IP may be empty, in which case the
// IPv4 address of Iface is used.
type SocketConfig struct {
	IP           string
	Iface        string
	Port         int
	Protocol     Protocol
	Listening    bool
	Timestamping bool
}

// String renders the config for diagnostic log lines.
func (c SocketConfig) String() string {
	return fmt.Sprintf("SocketCfg[ip:%s iface:%s port:%d proto:%s listening:%t timestamping:%t]",
		c.IP, c.Iface, c.Port, c.Protocol, c.Listening, c.Timestamping)
}
