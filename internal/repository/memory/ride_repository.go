package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/google/uuid"
)

// RideRepository keeps rides in process memory
type RideRepository struct {
	mu    sync.RWMutex
	rides map[uuid.UUID]*ride.Ride
}

// NewRideRepository creates an empty ride store
func NewRideRepository() *RideRepository {
	return &RideRepository{rides: make(map[uuid.UUID]*ride.Ride)}
}

// Create stores a new ride
func (r *RideRepository) Create(_ context.Context, rd *ride.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rides[rd.ID]; exists {
		return fmt.Errorf("ride %s already exists", rd.ID)
	}
	cp := *rd
	r.rides[rd.ID] = &cp
	return nil
}

// GetByID returns the ride without its OTP
func (r *RideRepository) GetByID(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	rd, err := r.GetByIDWithOTP(ctx, id)
	if err != nil {
		return nil, err
	}
	return rd.WithoutOTP(), nil
}

// GetByIDWithOTP returns the ride including its OTP
func (r *RideRepository) GetByIDWithOTP(_ context.Context, id uuid.UUID) (*ride.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rd, ok := r.rides[id]
	if !ok {
		return nil, apperrors.ErrRideNotFound
	}
	cp := *rd
	return &cp, nil
}

// UpdateStatus moves the ride from one status to the next if it is still in from
func (r *RideRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to ride.Status, upd ride.Update) (*ride.Ride, error) {
	if !ride.CanTransition(from, to) {
		return nil, apperrors.InvalidState(fmt.Sprintf("cannot move ride from %s to %s", from, to))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rd, ok := r.rides[id]
	if !ok {
		return nil, apperrors.ErrRideNotFound
	}
	if rd.Status != from {
		return nil, apperrors.InvalidState(fmt.Sprintf("ride is %s, expected %s", rd.Status, from))
	}

	rd.ApplyTransition(to, upd)
	return rd.WithoutOTP(), nil
}
