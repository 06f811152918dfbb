// Package bttfn speaks the 48-byte BTTFN datagram protocol to the TCD:
// status polling, notifications, discovery and one-shot commands.
package bttfn

// Wire constants. These are shared with existing devices on the network
// and must not change.
const (
	PacketSize = 48
	Version    = 1

	DefaultPort           = 1338
	DefaultMulticastPort  = 1339
	DefaultMulticastGroup = "224.0.0.224"

	markNotify   = 0x40
	markResponse = 0x80
	versionMask  = 0x3f
)

// Magic opens every datagram.
var Magic = [4]byte{'B', 'T', 'T', 'F'}

// Byte offsets.
const (
	offVersion  = 4
	offFlags    = 5
	offID       = 6
	offHost     = 10
	hostLen     = 12 // plus NUL
	offDevice   = 23
	offCmdKind  = 24
	offCmdArg   = 25
	offStatus   = 26
	offCaps     = 27
	offHash     = 31
	offSeq      = 36
	offChecksum = PacketSize - 1

	offDate    = 10
	dateLen    = 8
	offSpeed   = 18
	offSpdSrc  = 8 // speed notification
	offLead    = 6 // trigger notification
	offCommand = 6 // remote command notification
)

// Request flags (byte 5 of a request and its response).
const (
	ReqDateTime uint8 = 0x01
	ReqSpeed    uint8 = 0x02
	ReqStatus   uint8 = 0x10
	ReqCaps     uint8 = 0x40
	ReqDiscover uint8 = 0x80

	ReqDefault = ReqDateTime | ReqSpeed | ReqStatus

	// reqTrigger in byte 5 of a plain packet asks the master for a
	// network-wide time travel.
	reqTrigger uint8 = 0x80
)

// Status bits in byte 26 of a response.
const (
	StatusNightMode uint8 = 0x01
	StatusFakeOff   uint8 = 0x02
	StatusRotEnc    uint8 = 0x80
)

// Capability bits in byte 27 of a response to ReqCaps.
const (
	CapKeypad        uint8 = 0x01
	CapKeypadAllowed uint8 = 0x02
)

// MaxSpeed caps speeds reported by the master.
const MaxSpeed = 88

// DeviceType identifies the sender class in byte 23.
type DeviceType uint8

const (
	DeviceAny DeviceType = iota
	DeviceFlux
	DeviceSID
	DevicePCG
	DeviceAux
)

// Kind is the notification kind carried in byte 5.
type Kind uint8

const (
	NotPrepare Kind = iota + 1
	NotTimeTravel
	NotReentry
	NotAbort
	NotAlarm
	NotRefill
	NotFluxCmd
	NotSIDCmd
	NotPCGCmd
	NotWakeup
	NotSpeed
)

func (k Kind) String() string {
	switch k {
	case NotPrepare:
		return "prepare"
	case NotTimeTravel:
		return "timetravel"
	case NotReentry:
		return "reentry"
	case NotAbort:
		return "abort"
	case NotAlarm:
		return "alarm"
	case NotRefill:
		return "refill"
	case NotFluxCmd:
		return "flux-cmd"
	case NotSIDCmd:
		return "sid-cmd"
	case NotPCGCmd:
		return "pcg-cmd"
	case NotWakeup:
		return "wakeup"
	case NotSpeed:
		return "speed"
	}
	return "unknown"
}

// CommandKind identifies an outbound one-shot command. Kinds start at 1
// and index the sequence counter table directly.
type CommandKind uint8

const (
	CmdTriggerTT CommandKind = iota + 1
	CmdKeypadKey
	CmdKeypadEnd

	maxCommandKind = CmdKeypadEnd
)

func (k CommandKind) String() string {
	switch k {
	case CmdTriggerTT:
		return "trigger"
	case CmdKeypadKey:
		return "keypad-key"
	case CmdKeypadEnd:
		return "keypad-end"
	}
	return "unknown"
}
