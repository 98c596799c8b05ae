package mqtt

import (
	"github.com/google/uuid"

	"github.com/sweeney/filament-dryer/internal/logic"
)

// CycleTracker assigns an ID to each drying cycle so subscribers can group
// the events of one run. A cycle starts at STARTED and ends with the STOPPED
// or FINISHED event, which still carries its ID.
type CycleTracker struct {
	newID   func() string
	current string
}

// NewCycleTracker creates a tracker that mints random UUIDs.
func NewCycleTracker() *CycleTracker {
	return &CycleTracker{newID: uuid.NewString}
}

// Observe returns the cycle ID for event ("" outside a cycle).
func (c *CycleTracker) Observe(event logic.Event) string {
	switch event.Type {
	case logic.EventStarted:
		c.current = c.newID()
		return c.current
	case logic.EventStopped, logic.EventFinished:
		id := c.current
		c.current = ""
		return id
	}
	return c.current
}

// Current returns the ID of the running cycle, if any.
func (c *CycleTracker) Current() string {
	return c.current
}
