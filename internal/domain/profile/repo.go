package profile

import "context"

// Repository is the persistence interface for user profiles.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	Upsert(ctx context.Context, u *User) error
	ListByRole(ctx context.Context, role string) ([]*User, error)
	List(ctx context.Context) ([]*User, error)
	SetOnline(ctx context.Context, id string, online bool) error
}
