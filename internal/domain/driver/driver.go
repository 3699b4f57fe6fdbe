package driver

import (
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/google/uuid"
)

// UserType is the websocket user type drivers register under
const UserType = "driver"

// Driver is the acting driver principal and the shape returned by driver
// searches. ConnectionHandle may be empty when the driver is offline.
type Driver struct {
	ID               uuid.UUID       `json:"id"`
	Location         ride.Coordinate `json:"location"`
	ConnectionHandle string          `json:"connection_handle,omitempty"`
}
