package logic

// Clock counts elapsed time from fixed-period ticks.
type Clock struct {
	ticksPerSecond int
	ticks          int
	elapsed        Elapsed
}

// NewClock creates a clock that advances one second every ticksPerSecond ticks.
func NewClock(ticksPerSecond int) *Clock {
	if ticksPerSecond <= 0 {
		ticksPerSecond = 1
	}
	return &Clock{ticksPerSecond: ticksPerSecond}
}

// Reset zeroes the elapsed time and the partial-second tick counter.
func (c *Clock) Reset() {
	c.ticks = 0
	c.elapsed = Elapsed{}
}

// Tick advances the clock by one tick, cascading seconds into minutes and hours.
func (c *Clock) Tick() {
	c.ticks++
	if c.ticks < c.ticksPerSecond {
		return
	}
	c.ticks = 0

	c.elapsed.Seconds++
	if c.elapsed.Seconds < 60 {
		return
	}
	c.elapsed.Seconds = 0

	c.elapsed.Minutes++
	if c.elapsed.Minutes < 60 {
		return
	}
	c.elapsed.Minutes = 0
	c.elapsed.Hours++
}

// Read returns the current elapsed time.
func (c *Clock) Read() Elapsed {
	return c.elapsed
}
