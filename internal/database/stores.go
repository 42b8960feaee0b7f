package database

import (
	"context"

	"github.com/google/uuid"
)

const getStore = `
SELECT id, name, is_open, preferred_provider, created_at
FROM stores WHERE id = $1
`

func (q *Queries) GetStore(ctx context.Context, id uuid.UUID) (Store, error) {
	var s Store
	err := q.db.QueryRow(ctx, getStore, id).
		Scan(&s.ID, &s.Name, &s.IsOpen, &s.PreferredProvider, &s.CreatedAt)
	return s, err
}

const updateStorePreferredProvider = `
UPDATE stores SET preferred_provider = $2 WHERE id = $1
RETURNING id, name, is_open, preferred_provider, created_at
`

func (q *Queries) UpdateStorePreferredProvider(ctx context.Context, id uuid.UUID, provider string) (Store, error) {
	var s Store
	err := q.db.QueryRow(ctx, updateStorePreferredProvider, id, provider).
		Scan(&s.ID, &s.Name, &s.IsOpen, &s.PreferredProvider, &s.CreatedAt)
	return s, err
}

const getUserByEmail = `
SELECT id, store_id, email, hashed_password, full_name, role, created_at
FROM users WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByEmail, email).
		Scan(&u.ID, &u.StoreID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.CreatedAt)
	return u, err
}

const getUserByID = `
SELECT id, store_id, email, hashed_password, full_name, role, created_at
FROM users WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByID, id).
		Scan(&u.ID, &u.StoreID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.CreatedAt)
	return u, err
}
