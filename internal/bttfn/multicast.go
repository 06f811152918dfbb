package bttfn

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// multicastLoop listens on the discovery group for masters announcing
// themselves and parks what it hears in the shared inbox.
func (t *UDPTransport) multicastLoop(ctx context.Context, cfg TransportConfig) {
	group := cfg.Group
	if group == nil {
		group = net.ParseIP(DefaultMulticastGroup)
	}
	port := cfg.MulticastPort
	if port == 0 {
		port = DefaultMulticastPort
	}

	pc, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		log.Printf("[bttfn] multicast listen error: %v", err)
		return
	}
	defer pc.Close()

	p := ipv4.NewPacketConn(pc)
	_ = p.SetControlMessage(ipv4.FlagDst, true)
	_ = p.SetMulticastLoopback(false)

	ifi := lookupIface(cfg.Iface)
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		log.Printf("[bttfn] JoinGroup %s failed: %v", group, err)
		return
	}
	defer func() { _ = p.LeaveGroup(ifi, &net.UDPAddr{IP: group}) }()
	log.Printf("[bttfn] joined %s:%d", group, port)

	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, cm, raddr, err := p.ReadFrom(buf)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}
		if err != nil {
			log.Printf("[bttfn] multicast read error: %v", err)
			continue
		}
		if cm != nil && cm.Dst != nil && !cm.Dst.Equal(group) {
			continue
		}
		from, ok := raddr.(*net.UDPAddr)
		if !ok {
			continue
		}
		t.park(Datagram{Data: append([]byte(nil), buf[:n]...), From: from, Multicast: true})
	}
}
