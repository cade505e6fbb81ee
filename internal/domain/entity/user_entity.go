package entity

import (
	"time"
)

// User is the sole aggregate of this service. Age is optional and therefore
// a pointer; nil means the user never provided one.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Age       *int      `json:"age"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
