package notification

import (
	"context"
	"time"

	"github.com/gocomet/ride-lifecycle/pkg/events"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/gocomet/ride-lifecycle/pkg/websocket"
)

// Event types pushed to riders and drivers
const (
	EventNewRide       = "new-ride"
	EventRideConfirmed = "ride-confirmed"
	EventRideStarted   = "ride-started"
	EventRideEnded     = "ride-ended"
)

// Event is a real-time message about a ride
type Event struct {
	Type    string
	RideID  string
	Payload interface{}
}

// Sender delivers a message to one live connection without blocking
type Sender interface {
	SendToConnection(handle string, message websocket.Message) error
}

// Mirror receives a copy of every event the hub accepted
type Mirror interface {
	Publish(ctx context.Context, key string, env events.Envelope) error
}

// Dispatcher pushes ride events to connection handles. Delivery is best
// effort: failures are logged and never returned.
type Dispatcher struct {
	sender Sender
	mirror Mirror
	logger *logger.Logger
}

// NewDispatcher creates a dispatcher. mirror may be nil.
func NewDispatcher(sender Sender, mirror Mirror, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		mirror: mirror,
		logger: logger,
	}
}

// Notify sends the event to handle. An empty handle is a no-op.
func (d *Dispatcher) Notify(ctx context.Context, handle string, event Event) {
	if handle == "" {
		return
	}

	if err := d.sender.SendToConnection(handle, websocket.Message{Type: event.Type, Data: event.Payload}); err != nil {
		d.logger.Warn("Failed to deliver ride event",
			logger.Err(err),
			logger.String("event", event.Type),
			logger.String("ride_id", event.RideID),
			logger.String("connection", handle),
		)
		return
	}

	if d.mirror == nil {
		return
	}
	env := events.Envelope{
		Type:       event.Type,
		Recipient:  handle,
		Payload:    event.Payload,
		OccurredAt: time.Now().UTC(),
	}
	if err := d.mirror.Publish(ctx, event.RideID, env); err != nil {
		d.logger.Warn("Failed to mirror ride event",
			logger.Err(err),
			logger.String("event", event.Type),
			logger.String("ride_id", event.RideID),
		)
	}
}
