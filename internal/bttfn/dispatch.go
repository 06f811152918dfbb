package bttfn

// Dispatch applies a notification. It is also the entry point for
// notifications arriving over other transports, so the same gating
// holds no matter how the master reached us.
func (c *Client) Dispatch(n Notification) {
	t := c.target
	if t == nil {
		return
	}
	switch n.Kind {
	case NotPrepare:
		// Prepare never comes over the wire link, so it is honored
		// even with a wired master.
		if !t.IsSequenceRunning() && !t.IsLocked() {
			t.NotifyPrepare()
		}
	case NotTimeTravel:
		if !c.opts.Wired && !t.IsSequenceRunning() && !t.IsLocked() {
			t.NotifyTimeTravel(n.Lead)
		}
	case NotReentry:
		if !c.opts.Wired && t.IsSequenceRunning() && t.IsNetworkSequence() {
			t.NotifyReentry()
		}
	case NotAbort:
		if !c.opts.Wired && t.IsSequenceRunning() && t.IsNetworkSequence() {
			t.NotifyAbort()
		}
	case NotAlarm:
		t.NotifyAlarm()
	case NotSIDCmd:
		if n.Command != 0 {
			t.QueueCommand(n.Command)
		}
	case NotWakeup:
		if !t.IsSequenceRunning() && !t.IsLocked() {
			t.NotifyWakeup()
		}
	case NotSpeed:
		c.acceptSpeed(n)
	}
}

// acceptSpeed takes a pushed speed update if it is newer than the last
// one. A sequence of 1 means the master restarted its counter.
func (c *Client) acceptSpeed(n Notification) {
	if n.Seq != 1 && n.Seq <= c.status.SpeedSeq {
		return
	}
	c.status.SpeedSeq = n.Seq
	c.setSpeed(int(n.Speed))
	c.status.RotaryEncoder = n.SpdSrc&StatusRotEnc != 0
}
