package bttfn

import "errors"

var (
	ErrNotConnected      = errors.New("bttfn: master not connected")
	ErrKeypadUnavailable = errors.New("bttfn: remote keypad not available")
	ErrBusy              = errors.New("bttfn: sequence running or input locked")
)

// TriggerTimeTravel asks the master to start a network-wide time travel.
// The master answers with a trigger notification to every prop.
func (c *Client) TriggerTimeTravel() error {
	if !c.Connected() {
		return ErrNotConnected
	}
	if c.target != nil && (c.target.IsSequenceRunning() || c.target.IsLocked()) {
		return ErrBusy
	}
	return c.sendCommand(CmdTriggerTT, 0)
}

// KeypadReady reports whether keypad emulation may be used.
func (c *Client) KeypadReady() bool {
	return c.opts.Keypad && c.Connected() && c.link.Keypad && c.link.KeypadAllowed
}

// SendKey emulates one key press on the master's keypad.
func (c *Client) SendKey(key uint8) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	if !c.KeypadReady() {
		return ErrKeypadUnavailable
	}
	return c.sendCommand(CmdKeypadKey, key)
}

// EndKeypad closes the keypad emulation session.
func (c *Client) EndKeypad() error {
	if !c.Connected() {
		return ErrNotConnected
	}
	if !c.KeypadReady() {
		return ErrKeypadUnavailable
	}
	return c.sendCommand(CmdKeypadEnd, 0)
}

func (c *Client) sendCommand(kind CommandKind, arg uint8) error {
	b := Command{
		Kind:   kind,
		Arg:    arg,
		Host:   c.opts.HostName,
		Device: DeviceSID,
		Seq:    c.nextSeq(kind),
	}.Encode()
	return c.conn.TrySend(b[:], c.link.Master)
}

// nextSeq returns the counter for kind and advances it, skipping 0.
func (c *Client) nextSeq(kind CommandKind) uint32 {
	s := c.seq[kind]
	c.seq[kind]++
	if c.seq[kind] == 0 {
		c.seq[kind] = 1
	}
	return s
}
