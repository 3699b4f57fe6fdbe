package pricing

import (
	"fmt"
	"math"
	"sort"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
)

// Rate is the tariff for one vehicle type
type Rate struct {
	BaseFare  float64
	PerKMRate float64
}

// Config holds pricing configuration
type Config struct {
	Rates map[ride.VehicleType]Rate
}

// DefaultConfig returns the standard tariff table
func DefaultConfig() Config {
	return Config{
		Rates: map[ride.VehicleType]Rate{
			ride.VehicleAuto: {BaseFare: 30, PerKMRate: 10},
			ride.VehicleCar:  {BaseFare: 50, PerKMRate: 15},
			ride.VehicleMoto: {BaseFare: 20, PerKMRate: 7},
		},
	}
}

// Calculator computes fares from a fixed tariff table. It is pure and safe
// for concurrent use.
type Calculator struct {
	rates map[ride.VehicleType]Rate
}

// NewCalculator validates the table and builds a calculator
func NewCalculator(cfg Config) (*Calculator, error) {
	if len(cfg.Rates) == 0 {
		return nil, fmt.Errorf("pricing: empty tariff table")
	}
	rates := make(map[ride.VehicleType]Rate, len(cfg.Rates))
	for vt, r := range cfg.Rates {
		if !validAmount(r.BaseFare) || !validAmount(r.PerKMRate) {
			return nil, fmt.Errorf("pricing: invalid rate for %q", vt)
		}
		rates[vt] = r
	}
	return &Calculator{rates: rates}, nil
}

// ComputeFare returns base + km * perKm for the vehicle type
func (c *Calculator) ComputeFare(vehicleType ride.VehicleType, distanceMeters float64) (float64, error) {
	rate, ok := c.rates[vehicleType]
	if !ok {
		return 0, apperrors.UnknownVehicleType(string(vehicleType))
	}
	if !validAmount(distanceMeters) {
		return 0, apperrors.InvalidInput("distance must be a finite non-negative number")
	}

	return rate.BaseFare + (distanceMeters/1000)*rate.PerKMRate, nil
}

// Supports reports whether the vehicle type has a tariff
func (c *Calculator) Supports(vehicleType ride.VehicleType) bool {
	_, ok := c.rates[vehicleType]
	return ok
}

// VehicleTypes lists the priced vehicle types in name order
func (c *Calculator) VehicleTypes() []ride.VehicleType {
	types := make([]ride.VehicleType, 0, len(c.rates))
	for vt := range c.rates {
		types = append(types, vt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
