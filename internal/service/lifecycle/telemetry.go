package lifecycle

import "time"

// Recorder receives ride telemetry
type Recorder interface {
	RideRequested(vehicleType string, fare float64, approximate bool)
	RideTransitioned(status string)
	DriversMatched(count int, latency time.Duration)
}

// Recorders fans telemetry out to several sinks
type Recorders []Recorder

func (rs Recorders) RideRequested(vehicleType string, fare float64, approximate bool) {
	for _, r := range rs {
		r.RideRequested(vehicleType, fare, approximate)
	}
}

func (rs Recorders) RideTransitioned(status string) {
	for _, r := range rs {
		r.RideTransitioned(status)
	}
}

func (rs Recorders) DriversMatched(count int, latency time.Duration) {
	for _, r := range rs {
		r.DriversMatched(count, latency)
	}
}
