package email

import (
	"strings"
	"testing"
	"time"
)

func TestBookingConfirmation(t *testing.T) {
	at := time.Date(2026, 2, 2, 14, 0, 0, 0, time.UTC)
	subject, body := BookingConfirmation("Luna", at, 30, "https://example.whereby.com/call-abc")

	if subject != "Your call with Luna is booked" {
		t.Fatalf("unexpected subject: %q", subject)
	}
	for _, want := range []string{"30 minute", "Luna", "Mon 2 Feb 2026 at 14:00 UTC", "https://example.whereby.com/call-abc"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBookingConfirmationNoName(t *testing.T) {
	subject, _ := BookingConfirmation("", time.Now(), 15, "u")
	if !strings.Contains(subject, "your creator") {
		t.Fatalf("unexpected subject: %q", subject)
	}
}

func TestBookingCancellation(t *testing.T) {
	at := time.Date(2026, 2, 2, 14, 30, 0, 0, time.UTC)
	subject, body := BookingCancellation("LUNA-ABC234", at)
	if subject != "Your call has been cancelled" {
		t.Fatalf("unexpected subject: %q", subject)
	}
	if !strings.Contains(body, "LUNA-ABC234") || !strings.Contains(body, "14:30 UTC") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("no-reply@velvetchat.local", "user@example.com", "Hello", "Body text")
	for _, want := range []string{
		"From: no-reply@velvetchat.local\r\n",
		"To: user@example.com\r\n",
		"Subject: Hello\r\n",
		"\r\n\r\nBody text\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
