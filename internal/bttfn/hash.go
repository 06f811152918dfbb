package bttfn

import (
	"net"
	"strings"
)

// HostNameHash is the 32-bit name hash carried by discovery requests.
// The master compares it against the hash of its own host name.
func HostNameHash(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		h = 37*h + uint32(c)
	}
	return h
}

// ParseMaster splits a configured master into a literal address or a
// host name that has to be discovered.
func ParseMaster(master string, port int) (addr *net.UDPAddr, name string) {
	master = strings.TrimSpace(master)
	if master == "" {
		return nil, ""
	}
	if ip := net.ParseIP(master); ip != nil && ip.To4() != nil {
		return &net.UDPAddr{IP: ip.To4(), Port: port}, ""
	}
	return nil, master
}
