package model

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Booking is one reserved video-call window between a user and a creator.
// RoomURL is the client-facing link; HostRoomURL carries host controls and is
// only ever shown to the creator.
type Booking struct {
	ID                string
	UserID            string
	CreatorCode       string
	CreatorName       string
	DurationMins      int
	ScheduledAt       time.Time
	EndTime           time.Time
	Status            string
	RoomURL           string
	HostRoomURL       string
	MeetingID         string
	CheckoutSessionID string
	CancelledAt       *time.Time
	CreatedAt         time.Time
}
