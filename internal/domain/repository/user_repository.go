package repository

import (
	"context"

	"github.com/pilabs/users-api/internal/domain/entity"
)

// ListFilter narrows a user listing. Nil / empty fields are ignored.
type ListFilter struct {
	IsActive *bool
	AgeMin   *int
	AgeMax   *int
	Search   string // case-insensitive substring over name OR email
}

// Pagination is 1-indexed.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// UserPatch names the fields an update touches. Nil pointers are left
// untouched; ClearAge removes the age value.
type UserPatch struct {
	Name     *string
	Age      *int
	ClearAge bool
	IsActive *bool
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Age == nil && !p.ClearAge && p.IsActive == nil
}

// UserRepository defines the interface for user-related database operations.
// Reads come from the replica pool, writes go to the primary.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context, f ListFilter, p Pagination) ([]*entity.User, int64, error)
	Update(ctx context.Context, id int64, patch UserPatch) error
	Delete(ctx context.Context, id int64) error
}
