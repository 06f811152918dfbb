// cmd/tcd-emulator/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"

	"sid-sync/internal/bttfn"
)

func main() {
	var (
		host      = flag.String("host", "timecircuits", "Host name announced to clients")
		port      = flag.Int("port", bttfn.DefaultPort, "UDP port")
		group     = flag.String("group", bttfn.DefaultMulticastGroup, "Discovery multicast group")
		groupPort = flag.Int("group-port", bttfn.DefaultMulticastPort, "Discovery multicast port")
		ttEvery   = flag.Duration("tt", 0, "Start a time travel at this interval (0 disables)")
		drive     = flag.Bool("drive", false, "Report a changing speed")
		keypad    = flag.Bool("keypad", false, "Advertise a keypad")
		console   = flag.Bool("console", true, "Read commands from stdin")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: *port})
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	m := newMaster(*host, conn)
	m.keypad = *keypad
	log.Printf("tcd-emulator started host=%s port=%d", *host, *port)

	go readLoop(ctx, conn, m)
	go discoveryLoop(ctx, net.ParseIP(*group), *groupPort, m)
	if *console {
		go m.console(ctx, os.Stdin)
	}
	if *drive {
		go driveLoop(ctx, m)
	}

	var ttC <-chan time.Time
	if *ttEvery > 0 {
		t := time.NewTicker(*ttEvery)
		defer t.Stop()
		ttC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("tcd-emulator stopped")
			return
		case <-ttC:
			m.timeTravel(5000)
		}
	}
}

func readLoop(ctx context.Context, conn *net.UDPConn, m *master) {
	buf := make([]byte, 2048)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, from, err := conn.ReadFromUDP(buf)
		if ctx.Err() != nil {
			return
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}
		if err != nil {
			log.Printf("[tcd] read: %v", err)
			continue
		}
		m.handle(buf[:n], from)
	}
}

// discoveryLoop answers clients looking for a master on the group.
func discoveryLoop(ctx context.Context, group net.IP, port int, m *master) {
	pc, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		log.Printf("[tcd] multicast listen: %v", err)
		return
	}
	defer pc.Close()

	p := ipv4.NewPacketConn(pc)
	if err := p.JoinGroup(nil, &net.UDPAddr{IP: group}); err != nil {
		log.Printf("[tcd] JoinGroup %s: %v", group, err)
		return
	}
	defer func() { _ = p.LeaveGroup(nil, &net.UDPAddr{IP: group}) }()
	log.Printf("[tcd] answering discovery on %s:%d", group, port)

	buf := make([]byte, 2048)
	for {
		_ = pc.SetReadDeadline(time.Now().Add(time.Second))
		n, _, from, err := p.ReadFrom(buf)
		if ctx.Err() != nil {
			return
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}
		if err != nil {
			continue
		}
		if ua, ok := from.(*net.UDPAddr); ok {
			m.handle(buf[:n], ua)
		}
	}
}

// driveLoop accelerates to 88 and back, jittering like a hand on the
// throttle.
func driveLoop(ctx context.Context, m *master) {
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	v, step := 0, 1
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			v += step + rand.Intn(2)
			if v >= bttfn.MaxSpeed {
				v, step = bttfn.MaxSpeed, -1
			} else if v <= 0 {
				v, step = 0, 1
			}
			m.setSpeed(int16(v))
		}
	}
}
