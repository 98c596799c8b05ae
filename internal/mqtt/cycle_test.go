package mqtt

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/filament-dryer/internal/logic"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("cycle-%d", n)
	}
}

func TestCycleTrackerGroupsOneRun(t *testing.T) {
	c := &CycleTracker{newID: sequentialIDs()}

	assert.Empty(t, c.Observe(logic.Event{Type: logic.EventPowerOn}))
	assert.Equal(t, "cycle-1", c.Observe(logic.Event{Type: logic.EventStarted}))
	assert.Equal(t, "cycle-1", c.Observe(logic.Event{Type: logic.EventProgress}))
	assert.Equal(t, "cycle-1", c.Observe(logic.Event{Type: logic.EventSetpoint}))
	assert.Equal(t, "cycle-1", c.Observe(logic.Event{Type: logic.EventFinished}))
	assert.Empty(t, c.Current())

	// the next run gets a fresh ID
	assert.Empty(t, c.Observe(logic.Event{Type: logic.EventAdjustMode}))
	assert.Equal(t, "cycle-2", c.Observe(logic.Event{Type: logic.EventStarted}))
	assert.Equal(t, "cycle-2", c.Observe(logic.Event{Type: logic.EventStopped}))
	assert.Empty(t, c.Current())
}

func TestCycleTrackerMintsUUIDs(t *testing.T) {
	c := NewCycleTracker()
	id := c.Observe(logic.Event{Type: logic.EventStarted})

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, c.Current())
}
