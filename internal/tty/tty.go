// Package tty reads the wired trigger line. The line is fed by a small
// serial bridge that prints one record per level change:
//
//	EVT,<input>,<state>
//
// Input 1 is the time travel line; state 1 is high.
package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// TTInput is the input number of the time travel line.
const TTInput = 1

// ErrBadLine is returned for records that are not EVT,<int>,<0|1>.
var ErrBadLine = errors.New("tty: bad line")

type Config struct {
	Device string
}

// Level is one level change of an input.
type Level struct {
	Input int
	High  bool
	At    time.Time
}

// ParseLine reads one record.
func ParseLine(line string) (Level, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 || parts[0] != "EVT" {
		return Level{}, ErrBadLine
	}
	input, err := strconv.Atoi(parts[1])
	if err != nil {
		return Level{}, fmt.Errorf("%w: input %q", ErrBadLine, parts[1])
	}
	switch parts[2] {
	case "0":
		return Level{Input: input}, nil
	case "1":
		return Level{Input: input, High: true}, nil
	}
	return Level{}, fmt.Errorf("%w: state %q", ErrBadLine, parts[2])
}

// Start blocks reading records from the device and sends them to out.
// A full out drops the record.
func Start(ctx context.Context, cfg Config, out chan<- Level) error {
	if cfg.Device == "" {
		log.Printf("[wire] disabled (no device)")
		<-ctx.Done()
		return ctx.Err()
	}

	f, err := os.Open(cfg.Device)
	if err != nil {
		return fmt.Errorf("tty: cannot open %s: %w", cfg.Device, err)
	}
	defer f.Close()

	log.Printf("[wire] listening on %s", cfg.Device)

	// Closing the file unblocks the scanner on cancel.
	go func() {
		<-ctx.Done()
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)

	for {
		if !scanner.Scan() {
			if ctx.Err() != nil {
				log.Printf("[wire] stopped: %v", ctx.Err())
				return ctx.Err()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("tty: read error: %w", err)
			}
			// EOF: the bridge may not have written yet.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		lv, err := ParseLine(line)
		if err != nil {
			log.Printf("[wire] ignore line %q: %v", line, err)
			continue
		}
		lv.At = time.Now()

		select {
		case out <- lv:
		default:
			log.Printf("[wire] queue full, dropping %q", line)
		}
	}
}

// Line tracks the level of one input and reports rising edges.
type Line struct {
	high bool
}

// Set records a level and reports whether it was a rising edge.
func (l *Line) Set(high bool) (rising bool) {
	rising = high && !l.high
	l.high = high
	return rising
}

// High reports the current level.
func (l *Line) High() bool { return l.high }

/*
test:
socat -d -d \
  pty,raw,echo=0,link=/tmp/ttyV0 \
  pty,raw,echo=0,link=/tmp/ttyV1 &

  echo -e "EVT,1,1" > /tmp/ttyV1
*/
