package main

import (
	"encoding/binary"
	"log"
	"net"
	"sync"
	"time"

	"sid-sync/internal/bttfn"
)

// sender is the socket side of the master, replaced in tests.
type sender interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// master is the emulated time circuits: it answers polls and discovery
// and pushes notifications to every client it has heard from.
type master struct {
	host string
	out  sender

	mu      sync.Mutex
	clients map[string]*net.UDPAddr
	speed   int16
	night   bool
	fakeOff bool
	rotEnc  bool
	keypad  bool
	seq     uint32
	now     func() time.Time
}

func newMaster(host string, out sender) *master {
	return &master{
		host:    host,
		out:     out,
		clients: map[string]*net.UDPAddr{},
		speed:   -1,
		now:     time.Now,
	}
}

// handle processes one datagram received on the unicast or group socket.
func (m *master) handle(b []byte, from *net.UDPAddr) {
	p, err := bttfn.Decode(b)
	if err != nil {
		log.Printf("[tcd] drop from %s: %v", from, err)
		return
	}
	if p.IsNotification() || p.IsResponse() {
		return
	}
	if c, ok := p.Command(); ok {
		m.remember(from)
		m.command(c)
		return
	}

	req := p.Request()
	if req.Flags&bttfn.ReqDiscover != 0 && req.Hash != 0 && req.Hash != bttfn.HostNameHash(m.host) {
		return
	}
	to := m.remember(from)
	resp := m.respond(req)
	_, _ = m.out.WriteToUDP(resp[:], to)
}

// remember records the client and returns its unicast address.
func (m *master) remember(from *net.UDPAddr) *net.UDPAddr {
	to := &net.UDPAddr{IP: from.IP, Port: from.Port}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[to.String()]; !ok {
		log.Printf("[tcd] new client %s", to)
	}
	m.clients[to.String()] = to
	return to
}

func (m *master) respond(req bttfn.Request) [bttfn.PacketSize]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := bttfn.Response{Flags: req.Flags, ID: req.ID}
	if req.Flags&bttfn.ReqDateTime != 0 {
		r.Date = encodeDate(m.now())
	}
	if req.Flags&bttfn.ReqSpeed != 0 {
		r.Speed = m.speed
		if m.rotEnc {
			r.Status |= bttfn.StatusRotEnc
		}
	}
	if req.Flags&bttfn.ReqStatus != 0 {
		if m.night {
			r.Status |= bttfn.StatusNightMode
		}
		if m.fakeOff {
			r.Status |= bttfn.StatusFakeOff
		}
	}
	if req.Flags&bttfn.ReqCaps != 0 && m.keypad {
		r.Caps = bttfn.CapKeypad | bttfn.CapKeypadAllowed
	}
	return r.Encode()
}

func (m *master) command(c bttfn.Command) {
	log.Printf("[tcd] %s from %q arg=%d seq=%d", c.Kind, c.Host, c.Arg, c.Seq)
	if c.Kind == bttfn.CmdTriggerTT {
		m.timeTravel(5000)
	}
}

// timeTravel announces a travel with the given lead in milliseconds and
// the reentry once the lead and a short tunnel have passed.
func (m *master) timeTravel(lead uint16) {
	m.notify(bttfn.Notification{Kind: bttfn.NotTimeTravel, Lead: lead})
	time.AfterFunc(time.Duration(lead)*time.Millisecond+4*time.Second, func() {
		m.notify(bttfn.Notification{Kind: bttfn.NotReentry})
	})
}

func (m *master) setSpeed(v int16) {
	m.mu.Lock()
	m.speed = v
	m.seq++
	seq := m.seq
	m.mu.Unlock()
	m.notify(bttfn.Notification{Kind: bttfn.NotSpeed, Speed: v, Seq: seq})
}

func (m *master) setNight(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.night = on
}

func (m *master) setFakeOff(off bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fakeOff = off
}

func (m *master) setRotEnc(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotEnc = on
}

func (m *master) notify(n bttfn.Notification) {
	n.Host = m.host
	b := n.Encode()

	m.mu.Lock()
	to := make([]*net.UDPAddr, 0, len(m.clients))
	for _, a := range m.clients {
		to = append(to, a)
	}
	m.mu.Unlock()

	for _, a := range to {
		if _, err := m.out.WriteToUDP(b[:], a); err != nil {
			log.Printf("[tcd] notify %s: %v", a, err)
		}
	}
	log.Printf("[tcd] %s sent to %d client(s)", n.Kind, len(to))
}

// encodeDate packs year, month, day, hour and minute the way the
// display date is presented to clients.
func encodeDate(t time.Time) [8]byte {
	var d [8]byte
	binary.LittleEndian.PutUint16(d[0:], uint16(t.Year()))
	d[2] = uint8(t.Month())
	d[3] = uint8(t.Day())
	d[4] = uint8(t.Hour())
	d[5] = uint8(t.Minute())
	d[6] = uint8(t.Second())
	return d
}
