package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-blog/pkg/models"
)

const userColumns = `id, email, username, password_hash, role, avatar, bio, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.Role,
		&u.Avatar,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// SaveUser создаёт пользователя.
func (s *Storage) SaveUser(ctx context.Context, u *models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users(` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.Username,
		u.PasswordHash,
		u.Role,
		u.Avatar,
		u.Bio,
		u.CreatedAt,
		u.UpdatedAt,
	)

	return wrap(op, err)
}

// UpdateUser сохраняет изменяемые поля профиля.
func (s *Storage) UpdateUser(ctx context.Context, u *models.User) error {
	const op = "storage.postgres.UpdateUser"

	query := `
		UPDATE users
		SET username = $2, avatar = $3, bio = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, u.ID, u.Username, u.Avatar, u.Bio, u.UpdatedAt)
	return mustAffect(op, tag, err)
}

// UserByEmail ищет пользователя по e-mail (ожидается уже нормализованный).
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, wrap(op, err)
	}

	return u, nil
}

func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, wrap(op, err)
	}

	return u, nil
}

func (s *Storage) UsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	const op = "storage.postgres.UsersByIDs"

	out := make(map[uuid.UUID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrap(op, err)
		}

		out[u.ID] = u
	}

	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}

	return out, nil
}
