package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Status string

const (
	StatusBooked    Status = "Booked"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Profile is the application user record. ID equals the identity provider's
// subject id, so the two share one key rather than being independently minted.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Age          int       `json:"age"`
	Address      string    `json:"address"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Appointment reserves a (user, date, time) slot. Date is YYYY-MM-DD and
// Time is HH:MM, kept as strings end to end since nothing computes on them.
type Appointment struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	// filled on the admin listing only
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}
