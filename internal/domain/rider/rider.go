package rider

import "github.com/google/uuid"

// UserType is the websocket user type riders register under
const UserType = "rider"

// Rider is the acting rider principal
type Rider struct {
	ID               uuid.UUID `json:"id"`
	ConnectionHandle string    `json:"connection_handle,omitempty"`
}
