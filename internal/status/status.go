// Package status holds the live detection status shown next to the stream.
package status

import (
	"fmt"
	"sync"
	"time"
)

// Status messages.
const (
	Starting = "Starting…"
	NoHand   = "No hand"
)

// Text formats the status message for a hand count.
func Text(hands int) string {
	if hands <= 0 {
		return NoHand
	}
	return fmt.Sprintf("Hands: %d", hands)
}

// Snapshot is a point-in-time copy of the cell.
type Snapshot struct {
	Text      string    `json:"text"`
	Hands     int       `json:"hands"`
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cell is a single-slot, last-write-wins status value. Readers always see a
// whole value; there is no history.
type Cell struct {
	mu      sync.RWMutex
	current Snapshot
	subs    map[chan Snapshot]struct{}
}

// NewCell creates a Cell holding the Starting message.
func NewCell() *Cell {
	return &Cell{
		current: Snapshot{Text: Starting, UpdatedAt: time.Now()},
		subs:    make(map[chan Snapshot]struct{}),
	}
}

// SetHands records the outcome of one detection pass.
func (c *Cell) SetHands(n int) {
	if n < 0 {
		n = 0
	}
	c.set(Text(n), n)
}

// Set overwrites the status text directly. Hands is reset to zero.
func (c *Cell) Set(text string) {
	c.set(text, 0)
}

func (c *Cell) set(text string, hands int) {
	c.mu.Lock()
	c.current = Snapshot{
		Text:      text,
		Hands:     hands,
		Seq:       c.current.Seq + 1,
		UpdatedAt: time.Now(),
	}
	snap := c.current
	for ch := range c.subs {
		offer(ch, snap)
	}
	c.mu.Unlock()
}

// offer delivers snap without blocking, replacing an undelivered older value.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Get returns the current status text.
func (c *Cell) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Text
}

// Snapshot returns the full current value.
func (c *Cell) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Subscribe returns a channel that receives every change. A slow reader only
// ever sees the latest value. Call cancel to stop receiving; the channel is
// closed afterwards.
func (c *Cell) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (c *Cell) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
