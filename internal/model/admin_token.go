package model

import "time"

// AdminToken is a push registration token for an admin's device.
type AdminToken struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	UpdatedAt time.Time `json:"updatedAt"`
}
