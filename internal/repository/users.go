package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/domain"
)

func (r *Repository) GetAllUsers() ([]*domain.User, error) {
	query := `
		SELECT id, username, password_hash, roles, is_active, created_at FROM users ORDER BY id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user := &domain.User{}
		var roles []byte
		dst := []any{&user.ID, &user.Username, &user.PasswordHash, &roles, &user.IsActive, &user.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(roles, &user.Roles); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *Repository) GetUserByID(id int64) (*domain.User, error) {
	query := `
		SELECT username, password_hash, roles, is_active, created_at
		FROM users WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	user := &domain.User{
		ID: id,
	}

	var roles []byte
	dst := []any{&user.Username, &user.PasswordHash, &roles, &user.IsActive, &user.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(roles, &user.Roles); err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Repository) GetUserByUsername(username string) (*domain.User, error) {
	query := `
		SELECT id, username, password_hash, roles, is_active, created_at
		FROM users WHERE username = $1
	`

	return r.getUser(query, username)
}

// GetUserByUsernameFold 按忽略大小写的方式查找用户名，用于重复检查
func (r *Repository) GetUserByUsernameFold(username string) (*domain.User, error) {
	query := `
		SELECT id, username, password_hash, roles, is_active, created_at
		FROM users WHERE LOWER(username) = LOWER($1)
	`

	return r.getUser(query, username)
}

func (r *Repository) getUser(query string, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	user := &domain.User{}

	var roles []byte
	dst := []any{&user.ID, &user.Username, &user.PasswordHash, &roles, &user.IsActive, &user.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, username).Scan(dst...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(roles, &user.Roles); err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Repository) CreateUser(user *domain.User) error {
	query := `
		INSERT INTO users (username, password_hash, roles)
		VALUES ($1, $2, $3)
		RETURNING id, is_active, created_at
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	roles, err := json.Marshal(user.Roles)
	if err != nil {
		return err
	}

	args := []any{user.Username, user.PasswordHash, roles}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.IsActive, &user.CreatedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdateUser(user *domain.User) error {
	query := `
		UPDATE users
		SET
			username = $1,
			password_hash = $2,
			roles = $3,
			is_active = $4
		WHERE id = $5
		RETURNING created_at
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	roles, err := json.Marshal(user.Roles)
	if err != nil {
		return err
	}

	args := []any{user.Username, user.PasswordHash, roles, user.IsActive, user.ID}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.CreatedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteUser(id int64) error {
	query := `
		DELETE FROM users WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return nil
}
