package email

import (
	"fmt"
	"time"
)

// BookingConfirmation renders the subject and body for a confirmed
// video call. scheduledAt is formatted in UTC.
func BookingConfirmation(creatorName string, scheduledAt time.Time, durationMins int, roomURL string) (string, string) {
	if creatorName == "" {
		creatorName = "your creator"
	}
	subject := fmt.Sprintf("Your call with %s is booked", creatorName)
	body := fmt.Sprintf(
		"Your %d minute video call with %s is confirmed for %s.\n\nJoin link: %s\n\nThe link becomes active shortly before the call starts.",
		durationMins,
		creatorName,
		scheduledAt.UTC().Format("Mon 2 Jan 2006 at 15:04 UTC"),
		roomURL,
	)
	return subject, body
}

// BookingCancellation renders the subject and body for a cancelled call.
func BookingCancellation(creatorCode string, scheduledAt time.Time) (string, string) {
	subject := "Your call has been cancelled"
	body := fmt.Sprintf(
		"Your video call with %s scheduled for %s has been cancelled.",
		creatorCode,
		scheduledAt.UTC().Format("Mon 2 Jan 2006 at 15:04 UTC"),
	)
	return subject, body
}
