package board

import "time"

// clock hands out strictly increasing timestamps so UpdatedAt never repeats
// or goes backwards, even when the wall clock does. Callers hold the store lock.
type clock struct {
	now  func() time.Time
	last time.Time
}

func (c *clock) next() time.Time {
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// observe moves the floor forward to t without issuing it.
func (c *clock) observe(t time.Time) {
	if t.After(c.last) {
		c.last = t.UTC()
	}
}
