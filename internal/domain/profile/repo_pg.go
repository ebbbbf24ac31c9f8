package profile

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const userCols = `id, display_name, avatar_url, role, online, last_seen_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	// avatar_url is nullable; rows seeded outside the API carry NULL.
	var avatar *string
	err := row.Scan(&u.ID, &u.DisplayName, &avatar, &u.Role, &u.Online, &u.LastSeenAt)
	if avatar != nil {
		u.AvatarURL = *avatar
	}
	return &u, err
}

func (r *repoPG) Get(ctx context.Context, id string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *repoPG) Upsert(ctx context.Context, u *User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO app_user (id, display_name, avatar_url, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			role = EXCLUDED.role`,
		u.ID, u.DisplayName, u.AvatarURL, u.Role)
	return err
}

func (r *repoPG) ListByRole(ctx context.Context, role string) ([]*User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userCols+` FROM app_user
		WHERE role = $1
		ORDER BY display_name ASC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *repoPG) List(ctx context.Context) ([]*User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userCols+` FROM app_user ORDER BY display_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *repoPG) SetOnline(ctx context.Context, id string, online bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE app_user SET online = $2, last_seen_at = NOW() WHERE id = $1`,
		id, online)
	return err
}

func collectUsers(rows pgx.Rows) ([]*User, error) {
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}
