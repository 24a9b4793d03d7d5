package models

import "time"

// User is identified by phone number and created on first verification.
type User struct {
	Phone     string    `db:"phone" json:"phone"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DefaultUserName is assigned when a new user does not supply a name.
func DefaultUserName(phone string) string {
	return "User_" + phone
}

// Pagination describes the pagination metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
