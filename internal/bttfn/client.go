package bttfn

import (
	"log"
	"net"
	"time"
)

// Target is the side of the device that notifications act on. The
// client asks it for the run state the gating rules need.
type Target interface {
	IsSequenceRunning() bool
	IsNetworkSequence() bool
	IsLocked() bool

	NotifyTimeTravel(lead uint16)
	NotifyReentry()
	NotifyAbort()
	NotifyAlarm()
	NotifyPrepare()
	NotifyWakeup()
	QueueCommand(cmd uint32)
}

// Options configure a Client.
type Options struct {
	Enabled  bool
	Master   string // literal IPv4 or a host name to discover
	HostName string // our name, sent in every packet

	Port          int
	Group         net.IP
	MulticastPort int

	PollInterval    time.Duration
	ResponseTimeout time.Duration
	MaxFailures     int
	Liveness        time.Duration // silence before the master is dropped
	BootLiveness    time.Duration // silence after boot with no packet at all

	Wired  bool // a wired master supplies the trigger line
	Keypad bool // remote keypad emulation permitted
}

func (o *Options) withDefaults() {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Group == nil {
		o.Group = net.ParseIP(DefaultMulticastGroup)
	}
	if o.MulticastPort == 0 {
		o.MulticastPort = DefaultMulticastPort
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = 700 * time.Millisecond
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = 10
	}
	if o.Liveness <= 0 {
		o.Liveness = 30 * time.Second
	}
	if o.BootLiveness <= 0 {
		o.BootLiveness = 60 * time.Second
	}
}

// PeerLink is the client's view of the master.
type PeerLink struct {
	Master        *net.UDPAddr // nil until configured or discovered
	LastPacket    time.Time    // zero until a valid packet arrived
	RequestID     uint32
	RequestSent   time.Time
	Pending       bool
	Failures      int
	CapsKnown     bool
	Keypad        bool
	KeypadAllowed bool
}

// Status is what the master last told us. Only the client writes it.
type Status struct {
	Speed         int // -1 when unknown
	RotaryEncoder bool
	NightMode     bool
	FakePowerOff  bool
	Date          [dateLen]byte
	DateAt        time.Time
	SpeedSeq      uint32
}

// Client runs the request/response cycle and dispatches notifications.
// All methods are called from the device loop.
type Client struct {
	opts   Options
	conn   Conn
	target Target
	netUp  func() bool
	up     bool // netUp sampled once per Poll
	onPeer func(from *net.UDPAddr, host string, at time.Time)

	link       PeerLink
	masterName string
	hash       uint32
	group      *net.UDPAddr

	started      time.Time
	lastUpdate   time.Time // zero means a request is due now
	wasUp        bool
	bootTimedOut bool
	online       bool

	seq [maxCommandKind + 1]uint32

	status Status
}

// New builds a client. netUp reports whether the network is usable; nil
// means always.
func New(opts Options, conn Conn, target Target, netUp func() bool) *Client {
	opts.withDefaults()
	if netUp == nil {
		netUp = func() bool { return true }
	}
	c := &Client{
		opts:   opts,
		conn:   conn,
		target: target,
		netUp:  netUp,
		group:  &net.UDPAddr{IP: opts.Group, Port: opts.MulticastPort},
		status: Status{Speed: -1},
		up:     netUp(),
	}
	for k := range c.seq {
		c.seq[k] = 1
	}
	c.link.Master, c.masterName = ParseMaster(opts.Master, opts.Port)
	if c.masterName != "" {
		c.hash = HostNameHash(c.masterName)
	}
	if c.link.Master == nil && c.masterName == "" {
		c.opts.Enabled = false
	}
	return c
}

// OnPeer registers a hook called for every valid packet.
func (c *Client) OnPeer(fn func(from *net.UDPAddr, host string, at time.Time)) { c.onPeer = fn }

// Enabled reports whether the client is configured to run.
func (c *Client) Enabled() bool { return c.opts.Enabled }

// Link returns a copy of the peer link.
func (c *Client) Link() PeerLink { return c.link }

// Status returns a copy of the inbound status.
func (c *Client) Status() Status { return c.status }

// CurrentRemoteSpeed returns the last speed from the master.
func (c *Client) CurrentRemoteSpeed() (int, bool) {
	return c.status.Speed, c.status.Speed >= 0
}

// Connected reports a usable master: enabled, address known, network up
// and at least one valid packet heard.
func (c *Client) Connected() bool {
	return c.opts.Enabled && c.link.Master != nil && c.up && !c.link.LastPacket.IsZero()
}

// Forget drops what was learned about the master. A master given by
// host name is discovered again; a literal address is kept.
func (c *Client) Forget() {
	if c.masterName != "" {
		c.link.Master = nil
	}
	c.link.LastPacket = time.Time{}
	c.link.Pending = false
	c.link.Failures = 0
	c.link.CapsKnown = false
	c.link.Keypad, c.link.KeypadAllowed = false, false
	c.status = Status{Speed: -1}
	c.lastUpdate = time.Time{}
	log.Printf("[bttfn] master forgotten")
}

// Poll is the per-tick step: handle at most one datagram, expire the
// outstanding request, issue a new one when due and watch liveness.
func (c *Client) Poll(now time.Time) {
	if !c.opts.Enabled {
		return
	}
	if c.started.IsZero() {
		c.started = now
	}
	c.up = c.netUp()
	retry := c.receive(now)

	if !c.link.Pending && !retry {
		if !c.wasUp && c.up {
			c.lastUpdate = time.Time{}
		}
		if c.lastUpdate.IsZero() || now.Sub(c.lastUpdate) > c.opts.PollInterval {
			c.sendRequest(now)
		}
	}

	c.checkLiveness(now)
}

// Service handles inbound traffic only. It is safe to call from inside
// bounded waits, where no new requests should go out.
func (c *Client) Service(now time.Time) {
	if !c.opts.Enabled {
		return
	}
	if c.started.IsZero() {
		c.started = now
	}
	c.receive(now)
}

// receive handles at most one datagram. It reports whether the
// outstanding request timed out during this call.
func (c *Client) receive(now time.Time) (timedOut bool) {
	d, ok := c.conn.TryReceive()
	if !ok {
		if c.link.Pending && now.Sub(c.link.RequestSent) > c.opts.ResponseTimeout {
			c.link.Pending = false
			// Retry on the next tick for the first failures, then fall
			// back to the poll interval.
			if c.link.Master != nil && c.link.Failures < c.opts.MaxFailures {
				c.link.Failures++
				c.lastUpdate = time.Time{}
			}
			return true
		}
		return false
	}

	p, err := Decode(d.Data)
	if err != nil {
		return false
	}
	if p.Version() != Version {
		return false
	}

	if d.Multicast && !c.acceptAnnouncement(p, d.From) {
		return false
	}

	switch {
	case p.IsNotification():
		c.seen(d.From, p.Host(), now)
		c.Dispatch(p.Notification())
	case p.IsResponse():
		c.handleResponse(p, d.From, now)
	}
	return false
}

// acceptAnnouncement decides whether a multicast sender is our master.
// The first plausible master is adopted as the unicast target.
func (c *Client) acceptAnnouncement(p Packet, from *net.UDPAddr) bool {
	if from == nil || !(p.IsNotification() || p.IsResponse()) {
		return false
	}
	if c.link.Master != nil {
		return from.IP.Equal(c.link.Master.IP)
	}
	if host := p.Host(); host != "" && c.masterName != "" && HostNameHash(host) != c.hash {
		return false
	}
	c.adopt(from)
	return true
}

func (c *Client) adopt(from *net.UDPAddr) {
	c.link.Master = &net.UDPAddr{IP: from.IP, Port: c.opts.Port}
	log.Printf("[bttfn] discovered master %s (%s)", c.link.Master.IP, c.masterName)
}

func (c *Client) handleResponse(p Packet, from *net.UDPAddr, now time.Time) {
	r := p.Response()
	if r.ID != c.link.RequestID {
		return
	}

	c.link.Failures = 0
	c.link.Pending = false

	if r.Flags&ReqDiscover != 0 && c.link.Master == nil && from != nil {
		c.adopt(from)
	}

	if r.Flags&ReqDateTime != 0 {
		c.status.Date = r.Date
		c.status.DateAt = now
	}
	if r.Flags&ReqSpeed != 0 {
		c.setSpeed(int(r.Speed))
		c.status.RotaryEncoder = r.Status&StatusRotEnc != 0
	}
	if r.Flags&ReqStatus != 0 {
		c.status.NightMode = r.Status&StatusNightMode != 0
		c.status.FakePowerOff = r.Status&StatusFakeOff != 0
	} else {
		c.status.NightMode = false
		c.status.FakePowerOff = false
	}
	if r.Flags&ReqCaps != 0 && !c.link.CapsKnown {
		c.link.CapsKnown = true
		c.link.Keypad = r.Caps&CapKeypad != 0
		c.link.KeypadAllowed = r.Caps&CapKeypadAllowed != 0
	}

	c.seen(from, "", now)
}

func (c *Client) setSpeed(v int) {
	if v < 0 {
		v = -1
	} else if v > MaxSpeed {
		v = MaxSpeed
	}
	c.status.Speed = v
}

func (c *Client) seen(from *net.UDPAddr, host string, now time.Time) {
	c.link.LastPacket = now
	if c.onPeer != nil && from != nil {
		c.onPeer(from, host, now)
	}
}

func (c *Client) sendRequest(now time.Time) {
	c.link.Pending = false
	c.lastUpdate = now

	if !c.up {
		c.wasUp = false
		return
	}
	c.wasUp = true

	id := uint32(now.Sub(c.started) / time.Millisecond)
	if id == 0 || id == c.link.RequestID {
		id = c.link.RequestID + 1
	}
	req := Request{
		Flags:  ReqDefault,
		ID:     id,
		Host:   c.opts.HostName,
		Device: DeviceSID,
	}
	if c.opts.Keypad && !c.link.CapsKnown {
		req.Flags |= ReqCaps
	}

	to := c.link.Master
	if to == nil {
		req.Flags |= ReqDiscover
		req.Hash = c.hash
		to = c.group
	}

	b := req.Encode()
	_ = c.conn.TrySend(b[:], to)

	c.link.RequestID = id
	c.link.RequestSent = now
	c.link.Pending = true
}

func (c *Client) checkLiveness(now time.Time) {
	last := c.link.LastPacket
	if (!last.IsZero() && now.Sub(last) > c.opts.Liveness) ||
		(!c.bootTimedOut && last.IsZero() && now.Sub(c.started) > c.opts.BootLiveness) {
		c.status.NightMode = false
		c.status.FakePowerOff = false
		c.status.Speed = -1
		c.link.LastPacket = time.Time{}
		c.bootTimedOut = true
	}

	if online := c.Connected(); online != c.online {
		c.online = online
		addr := "?"
		if c.link.Master != nil {
			addr = c.link.Master.IP.String()
		}
		if online {
			log.Printf("[bttfn] master %s is ONLINE", addr)
		} else {
			log.Printf("[bttfn] master %s is OFFLINE", addr)
		}
	}
}
