package model

import "time"

const (
	SenderUser    = "user"
	SenderCreator = "creator"
)

// Message is one chat message between a user and a creator persona.
type Message struct {
	ID          string
	UserID      string
	CreatorCode string
	Body        string
	Sender      string
	Read        bool
	CreatedAt   time.Time
}

// Media is a locked content item a creator has uploaded. Users spend
// credits to unlock items; unlocks are tracked per user.
type Media struct {
	ID          string
	CreatorCode string
	Type        string
	URL         string
	Caption     string
	CreatedAt   time.Time
}

// Persona is the creator identity the reply generator speaks as.
type Persona struct {
	Name string
	Age  int
}
