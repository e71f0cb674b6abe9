package models

import "time"

// User is the resolved sender identity attached to hydrated messages.
// Identity itself is established upstream; this service only mirrors
// the profile fields it needs for rendering.
type User struct {
	ID              string    `db:"id" json:"id"`
	Email           string    `db:"email" json:"email,omitempty"`
	FirstName       string    `db:"first_name" json:"firstName,omitempty"`
	LastName        string    `db:"last_name" json:"lastName,omitempty"`
	ProfileImageURL string    `db:"profile_image_url" json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}
