// Package remote executes numeric user commands that arrive from the
// TCD keypad (via BTTFN or MQTT) or the status API.
package remote

// QueueSize is the number of commands buffered between loop ticks.
const QueueSize = 16

// Queue is a fixed ring of pending commands. When full, the oldest
// command is overwritten. Not safe for concurrent use; the device loop
// owns it.
type Queue struct {
	buf  [QueueSize]uint32
	head int // next to pop
	n    int
}

// Push appends cmd. Zero is not a command and is ignored.
func (q *Queue) Push(cmd uint32) {
	if cmd == 0 {
		return
	}
	tail := (q.head + q.n) % QueueSize
	q.buf[tail] = cmd
	if q.n == QueueSize {
		q.head = (q.head + 1) % QueueSize
		return
	}
	q.n++
}

// Pop removes the oldest command.
func (q *Queue) Pop() (uint32, bool) {
	if q.n == 0 {
		return 0, false
	}
	cmd := q.buf[q.head]
	q.buf[q.head] = 0
	q.head = (q.head + 1) % QueueSize
	q.n--
	return cmd, true
}

func (q *Queue) Len() int { return q.n }
