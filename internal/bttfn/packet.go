package bttfn

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
)

var (
	ErrShort    = errors.New("bttfn: short packet")
	ErrMagic    = errors.New("bttfn: bad magic")
	ErrChecksum = errors.New("bttfn: checksum mismatch")
)

// header is the fixed start of every datagram.
type header struct {
	Magic   [4]byte
	Version uint8
	Flags   uint8
	ID      uint32
}

// Checksum sums bytes 4..46 XOR 0x55, truncated to 8 bits.
func Checksum(b *[PacketSize]byte) uint8 {
	var a uint8
	for i := offVersion; i < offChecksum; i++ {
		a += b[i] ^ 0x55
	}
	return a
}

// Packet is a validated datagram. Accessors give typed views for each
// message class.
type Packet struct {
	raw [PacketSize]byte
	hdr header
}

// Decode validates b and returns the packet. Anything that is not a
// well-formed BTTFN datagram is rejected.
func Decode(b []byte) (Packet, error) {
	var p Packet
	if len(b) < PacketSize {
		return p, ErrShort
	}
	copy(p.raw[:], b[:PacketSize])
	if err := binary.Read(bytes.NewReader(p.raw[:]), binary.LittleEndian, &p.hdr); err != nil {
		return p, ErrShort
	}
	if p.hdr.Magic != Magic {
		return p, ErrMagic
	}
	if p.raw[offChecksum] != Checksum(&p.raw) {
		return p, ErrChecksum
	}
	return p, nil
}

// Bytes returns the raw datagram.
func (p Packet) Bytes() [PacketSize]byte { return p.raw }

// Version returns the protocol version without direction bits.
func (p Packet) Version() uint8 { return p.hdr.Version & versionMask }

// IsNotification reports a master-originated notification.
func (p Packet) IsNotification() bool { return p.hdr.Version&markNotify != 0 }

// IsResponse reports a reply to a request.
func (p Packet) IsResponse() bool { return p.hdr.Version&markResponse != 0 }

// ID returns the correlation id (bytes 6..9).
func (p Packet) ID() uint32 { return p.hdr.ID }

// Flags returns byte 5.
func (p Packet) Flags() uint8 { return p.hdr.Flags }

// Host returns the sender host name field.
func (p Packet) Host() string {
	return cleanStr(p.raw[offHost : offHost+hostLen])
}

// Device returns the sender device type.
func (p Packet) Device() DeviceType { return DeviceType(p.raw[offDevice]) }

// Request is what a client sends to poll the master.
type Request struct {
	Flags  uint8
	ID     uint32
	Host   string
	Device DeviceType
	Hash   uint32 // host name hash, discovery only
}

// Encode builds the datagram.
func (r Request) Encode() [PacketSize]byte {
	var b [PacketSize]byte
	putHeader(&b, Version, r.Flags, r.ID)
	putHost(&b, r.Host)
	b[offDevice] = uint8(r.Device)
	if r.Flags&ReqDiscover != 0 {
		binary.LittleEndian.PutUint32(b[offHash:], r.Hash)
	}
	b[offChecksum] = Checksum(&b)
	return b
}

// Request reads p as a client request.
func (p Packet) Request() Request {
	r := Request{
		Flags:  p.hdr.Flags,
		ID:     p.hdr.ID,
		Host:   p.Host(),
		Device: p.Device(),
	}
	if r.Flags&ReqDiscover != 0 {
		r.Hash = binary.LittleEndian.Uint32(p.raw[offHash:])
	}
	return r
}

// Response is the master's answer to a Request.
type Response struct {
	Flags  uint8
	ID     uint32
	Date   [dateLen]byte
	Speed  int16
	Status uint8
	Caps   uint8
}

// Encode builds the datagram.
func (r Response) Encode() [PacketSize]byte {
	var b [PacketSize]byte
	putHeader(&b, Version|markResponse, r.Flags, r.ID)
	copy(b[offDate:offDate+dateLen], r.Date[:])
	binary.LittleEndian.PutUint16(b[offSpeed:], uint16(r.Speed))
	b[offStatus] = r.Status
	b[offCaps] = r.Caps
	b[offChecksum] = Checksum(&b)
	return b
}

// Response reads p as a response.
func (p Packet) Response() Response {
	r := Response{
		Flags:  p.hdr.Flags,
		ID:     p.hdr.ID,
		Speed:  int16(binary.LittleEndian.Uint16(p.raw[offSpeed:])),
		Status: p.raw[offStatus],
		Caps:   p.raw[offCaps],
	}
	copy(r.Date[:], p.raw[offDate:offDate+dateLen])
	return r
}

// Notification is pushed by the master without a request.
type Notification struct {
	Kind Kind
	Host string

	Lead    uint16 // NotTimeTravel
	Command uint32 // NotSIDCmd and the other command kinds
	Speed   int16  // NotSpeed
	SpdSrc  uint8  // NotSpeed
	Seq     uint32 // NotSpeed
}

// Encode builds the datagram.
func (n Notification) Encode() [PacketSize]byte {
	var b [PacketSize]byte
	var id uint32
	switch n.Kind {
	case NotTimeTravel:
		id = uint32(n.Lead)
	case NotSpeed:
		id = uint32(uint16(n.Speed)) | uint32(n.SpdSrc)<<16
	default:
		id = n.Command
	}
	putHeader(&b, Version|markNotify, uint8(n.Kind), id)
	putHost(&b, n.Host)
	binary.LittleEndian.PutUint32(b[offSeq:], n.Seq)
	b[offChecksum] = Checksum(&b)
	return b
}

// Notification reads p as a notification.
func (p Packet) Notification() Notification {
	n := Notification{
		Kind: Kind(p.hdr.Flags),
		Host: p.Host(),
	}
	switch n.Kind {
	case NotTimeTravel:
		n.Lead = binary.LittleEndian.Uint16(p.raw[offLead:])
	case NotSpeed:
		n.Speed = int16(binary.LittleEndian.Uint16(p.raw[offID:]))
		n.SpdSrc = p.raw[offSpdSrc]
		n.Seq = binary.LittleEndian.Uint32(p.raw[offSeq:])
	default:
		n.Command = binary.LittleEndian.Uint32(p.raw[offCommand:])
	}
	return n
}

// Command is an outbound one-shot sent by the client.
type Command struct {
	Kind   CommandKind
	Arg    uint8
	Host   string
	Device DeviceType
	Seq    uint32
}

// Encode builds the datagram. A trigger keeps the historic byte 5 marker
// so older masters still act on it.
func (c Command) Encode() [PacketSize]byte {
	var b [PacketSize]byte
	var flags uint8
	if c.Kind == CmdTriggerTT {
		flags = reqTrigger
	}
	putHeader(&b, Version, flags, 0)
	putHost(&b, c.Host)
	b[offDevice] = uint8(c.Device)
	b[offCmdKind] = uint8(c.Kind)
	b[offCmdArg] = c.Arg
	binary.LittleEndian.PutUint32(b[offSeq:], c.Seq)
	b[offChecksum] = Checksum(&b)
	return b
}

// Command reads p as an outbound command. ok is false for packets that
// are not commands.
func (p Packet) Command() (Command, bool) {
	if p.IsNotification() || p.IsResponse() {
		return Command{}, false
	}
	kind := CommandKind(p.raw[offCmdKind])
	if p.hdr.Flags == reqTrigger && kind == 0 {
		kind = CmdTriggerTT
	}
	if kind == 0 || kind > maxCommandKind {
		return Command{}, false
	}
	return Command{
		Kind:   kind,
		Arg:    p.raw[offCmdArg],
		Host:   p.Host(),
		Device: p.Device(),
		Seq:    binary.LittleEndian.Uint32(p.raw[offSeq:]),
	}, true
}

func putHeader(b *[PacketSize]byte, version, flags uint8, id uint32) {
	copy(b[:4], Magic[:])
	b[offVersion] = version
	b[offFlags] = flags
	binary.LittleEndian.PutUint32(b[offID:], id)
}

func putHost(b *[PacketSize]byte, host string) {
	n := copy(b[offHost:offHost+hostLen], host)
	for i := offHost + n; i <= offHost+hostLen; i++ {
		b[i] = 0
	}
}

func cleanStr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
