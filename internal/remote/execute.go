package remote

import (
	"errors"
	"fmt"
	"log"
)

// ErrBadInput is returned for codes that map to no command.
var ErrBadInput = errors.New("remote: bad input")

// Codes with a fixed meaning.
const (
	CodeIdleModeBase = 10 // 10..15 select an idle mode
	CodeStopSide     = 20
	CodeAnalyzer     = 21
	CodeToggleStrict = 50
	CodeTogglePeaks  = 51
	CodeToggleIRLock = 71
	CodeShowIP       = 90

	CodeRestart       = 64738
	CodeForgetNetwork = 123456
	CodeForgetIRKeys  = 654321
)

// Actions is what commands can do to the device.
type Actions interface {
	SetIdleMode(mode int) error
	StopSideModes()
	StartAnalyzer()
	ToggleStrict()
	TogglePeaks()
	ToggleIRLock()
	ShowIP()
	Restart()
	ForgetNetwork() error
	ForgetIRKeys() error

	Running() bool // a time travel is in progress
	MaxIdleMode() int
}

// Format zero-pads cmd to the width its digit group uses: 2, 3, 5 or 6
// digits. Codes with 4 digits cannot be expressed and end up with 5.
func Format(cmd uint32) string {
	switch {
	case cmd < 100:
		return fmt.Sprintf("%02d", cmd)
	case cmd < 1000:
		return fmt.Sprintf("%03d", cmd)
	case cmd < 100000:
		return fmt.Sprintf("%05d", cmd)
	}
	return fmt.Sprintf("%06d", cmd)
}

// Handle executes a queued command. Values below 10 carry no command.
func Handle(cmd uint32, a Actions) error {
	if cmd < 10 {
		return nil
	}
	code := Format(cmd)
	if err := Execute(code, a); err != nil {
		log.Printf("[remote] %s: %v", code, err)
		return err
	}
	log.Printf("[remote] %s done", code)
	return nil
}

// Execute runs a command given as its digit string. The string length
// selects the group: 1 and 2 digit codes are display modes, 5 and 6
// digit codes are maintenance operations.
func Execute(code string, a Actions) error {
	n, err := parseDigits(code)
	if err != nil {
		return err
	}

	switch len(code) {
	case 1:
		return setIdle(n, a)
	case 2:
		switch {
		case n >= CodeIdleModeBase && n < CodeStopSide:
			return setIdle(n-CodeIdleModeBase, a)
		case n == 0 || n == CodeStopSide:
			a.StopSideModes()
		case n == 1 || n == CodeAnalyzer:
			a.StartAnalyzer()
		case n == CodeToggleStrict:
			a.ToggleStrict()
		case n == CodeTogglePeaks:
			a.TogglePeaks()
		case n == 70:
			// Reserved for the IR learning mode, which has no meaning
			// here.
		case n == CodeToggleIRLock:
			a.ToggleIRLock()
		case n == CodeShowIP:
			a.ShowIP()
		default:
			return ErrBadInput
		}
		return nil
	case 5:
		if n != CodeRestart {
			return ErrBadInput
		}
		a.Restart()
		return nil
	case 6:
		if a.Running() {
			return nil
		}
		switch n {
		case CodeForgetNetwork:
			return a.ForgetNetwork()
		case CodeForgetIRKeys:
			return a.ForgetIRKeys()
		}
		return ErrBadInput
	}
	return ErrBadInput
}

func setIdle(mode int, a Actions) error {
	if mode < 0 || mode > a.MaxIdleMode() {
		return ErrBadInput
	}
	if err := a.SetIdleMode(mode); err != nil {
		return fmt.Errorf("set idle mode %d: %w", mode, err)
	}
	return nil
}

func parseDigits(code string) (int, error) {
	if code == "" {
		return 0, ErrBadInput
	}
	n := 0
	for _, c := range code {
		if c < '0' || c > '9' {
			return 0, ErrBadInput
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
