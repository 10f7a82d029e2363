package model

import "time"

// Creator is a persona users chat with and book calls against. Code is the
// public handle users enter to find the creator.
type Creator struct {
	ID        string
	Name      string
	Code      string
	Age       int
	Location  string
	Bio       string
	Status    string
	CreatedAt time.Time
}

// UserAccount is the admin view of a platform user, including the credit
// balance the billing side maintains.
type UserAccount struct {
	ID          string
	Email       string
	CreatorCode string
	IsAdmin     bool
	Chocolates  int
	Roses       int
	Champagne   int
	Hearts      int
	TotalSpent  int64
	CreatedAt   time.Time
}
