package bttfn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
)

// Datagram is one received packet and its sender.
type Datagram struct {
	Data      []byte
	From      *net.UDPAddr
	Multicast bool // arrived on the multicast group
}

// Conn is the non-blocking datagram endpoint the client runs on.
// TryReceive returns at most one buffered datagram and never waits.
type Conn interface {
	TrySend(b []byte, to *net.UDPAddr) error
	TryReceive() (Datagram, bool)
}

// TransportConfig selects ports and the interface for multicast.
type TransportConfig struct {
	Port            int
	Group           net.IP
	MulticastPort   int
	Iface           string
	ListenMulticast bool
	Queue           int
}

// UDPTransport is a Conn over real sockets. Reader goroutines park
// datagrams in a bounded inbox that the loop drains without blocking.
type UDPTransport struct {
	conn    *net.UDPConn
	pc      *ipv4.PacketConn
	inbox   chan Datagram
	dropped atomic.Uint64
}

func NewUDPTransport(ctx context.Context, cfg TransportConfig) (*UDPTransport, error) {
	if cfg.Queue <= 0 {
		cfg.Queue = 32
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("bttfn: cannot listen on :%d: %w", cfg.Port, err)
	}

	t := &UDPTransport{
		conn:  conn,
		pc:    ipv4.NewPacketConn(conn),
		inbox: make(chan Datagram, cfg.Queue),
	}
	// Discovery requests leave through this socket.
	_ = t.pc.SetMulticastTTL(1)
	_ = t.pc.SetMulticastLoopback(false)
	if ifi := lookupIface(cfg.Iface); ifi != nil {
		_ = t.pc.SetMulticastInterface(ifi)
	}

	log.Printf("[bttfn] listening on UDP :%d", cfg.Port)
	go t.readLoop(ctx)
	if cfg.ListenMulticast {
		go t.multicastLoop(ctx, cfg)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return t, nil
}

// TrySend writes one datagram.
func (t *UDPTransport) TrySend(b []byte, to *net.UDPAddr) error {
	if to == nil {
		return errors.New("bttfn: no destination")
	}
	_, err := t.conn.WriteToUDP(b, to)
	return err
}

// TryReceive pops one buffered datagram, if any.
func (t *UDPTransport) TryReceive() (Datagram, bool) {
	select {
	case d := <-t.inbox:
		return d, true
	default:
		return Datagram{}, false
	}
}

// Dropped counts datagrams lost to a full inbox.
func (t *UDPTransport) Dropped() uint64 { return t.dropped.Load() }

func (t *UDPTransport) readLoop(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, addr, err := t.conn.ReadFromUDP(buf)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[bttfn] read error: %v", err)
			continue
		}
		t.park(Datagram{Data: append([]byte(nil), buf[:n]...), From: addr})
	}
}

func (t *UDPTransport) park(d Datagram) {
	select {
	case t.inbox <- d:
	default:
		t.dropped.Add(1)
	}
}

// InterfaceUp returns a network-up check for the named interface. An
// empty name accepts any non-loopback interface with an IPv4 address.
func InterfaceUp(name string) func() bool {
	return func() bool {
		if name != "" {
			ifi, err := net.InterfaceByName(name)
			if err != nil || ifi.Flags&net.FlagUp == 0 {
				return false
			}
			return hasIPv4(ifi)
		}
		ifaces, _ := net.Interfaces()
		for i := range ifaces {
			ifi := &ifaces[i]
			if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
				continue
			}
			if hasIPv4(ifi) {
				return true
			}
		}
		return false
	}
}

func hasIPv4(ifi *net.Interface) bool {
	addrs, _ := ifi.Addrs()
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
			return true
		}
	}
	return false
}

func lookupIface(name string) *net.Interface {
	if name == "" {
		return nil
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		log.Printf("[bttfn] cannot find iface %s: %v", name, err)
		return nil
	}
	return ifi
}
