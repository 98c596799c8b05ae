package logic

import "github.com/chewxy/math32"

// TemperatureFilter is a moving average over the last N sensor voltages.
// Slots start at zero, so readings are biased low until N samples have been pushed.
type TemperatureFilter struct {
	samples        []float32
	next           int
	mean           float32
	degreesPerVolt float32
}

// NewTemperatureFilter allocates a zero-filled filter of the given capacity.
func NewTemperatureFilter(capacity int, degreesPerVolt float32) *TemperatureFilter {
	if capacity <= 0 {
		capacity = 1
	}
	return &TemperatureFilter{
		samples:        make([]float32, capacity),
		degreesPerVolt: degreesPerVolt,
	}
}

// Push overwrites the oldest slot and recomputes the mean over all slots.
// Samples are clamped to 0..FullScaleVolts and a NaN sample is dropped, so a
// single bad conversion cannot poison the average for a whole window.
func (f *TemperatureFilter) Push(volts float32) {
	if math32.IsNaN(volts) {
		return
	}
	volts = math32.Max(0, math32.Min(volts, FullScaleVolts))

	f.samples[f.next] = volts
	f.next = (f.next + 1) % len(f.samples)

	var sum float32
	for _, v := range f.samples {
		sum += v
	}
	f.mean = sum / float32(len(f.samples))
}

// Volts returns the averaged sensor voltage.
func (f *TemperatureFilter) Volts() float32 {
	return f.mean
}

// Celsius converts the averaged voltage to degrees, truncated toward zero.
func (f *TemperatureFilter) Celsius() int {
	return int(f.mean * f.degreesPerVolt)
}

// Capacity returns the number of samples averaged.
func (f *TemperatureFilter) Capacity() int {
	return len(f.samples)
}
