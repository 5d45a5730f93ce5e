package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/domain"
)

// GetAllNotes 返回所有笔记并附带所属用户的用户名
// LEFT JOIN 保证所属用户已被删除的笔记也会被返回，此时用户名为 null
func (r *Repository) GetAllNotes() ([]*domain.NoteWithUsername, error) {
	query := `
		SELECT u.username, n.id, n.title, n.text, n.user_id, n.completed, n.created_at, n.updated_at
		FROM notes n
		LEFT JOIN users u ON u.id = n.user_id
		ORDER BY n.id
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]*domain.NoteWithUsername, 0)
	for rows.Next() {
		note := &domain.NoteWithUsername{}
		dst := []any{&note.Username, &note.ID, &note.Title, &note.Text, &note.UserID, &note.Completed, &note.CreatedAt, &note.UpdatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notes, nil
}

func (r *Repository) GetNoteByID(id int64) (*domain.Note, error) {
	query := `
		SELECT title, text, user_id, completed, created_at, updated_at
		FROM notes WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	note := &domain.Note{
		ID: id,
	}

	dst := []any{&note.Title, &note.Text, &note.UserID, &note.Completed, &note.CreatedAt, &note.UpdatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return note, nil
}

// GetNoteByTitle 按大小写敏感的精确匹配查找标题，用于重复检查
func (r *Repository) GetNoteByTitle(title string) (*domain.Note, error) {
	query := `
		SELECT id, text, user_id, completed, created_at, updated_at
		FROM notes WHERE title = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	note := &domain.Note{
		Title: title,
	}

	dst := []any{&note.ID, &note.Text, &note.UserID, &note.Completed, &note.CreatedAt, &note.UpdatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, title).Scan(dst...); err != nil {
		return nil, err
	}

	return note, nil
}

func (r *Repository) CreateNote(note *domain.Note) error {
	query := `
		INSERT INTO notes (title, text, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, completed, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{note.Title, note.Text, note.UserID}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&note.ID, &note.Completed, &note.CreatedAt, &note.UpdatedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdateNote(note *domain.Note) error {
	query := `
		UPDATE notes
		SET
			title = $1,
			text = $2,
			user_id = $3,
			completed = $4,
			updated_at = now()
		WHERE id = $5
		RETURNING created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	args := []any{note.Title, note.Text, note.UserID, note.Completed, note.ID}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&note.CreatedAt, &note.UpdatedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) DeleteNote(id int64) error {
	query := `
		DELETE FROM notes WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return nil
}

// CountNotesByUserID 用于删除用户前的引用检查
func (r *Repository) CountNotesByUserID(userID int64) (int64, error) {
	query := `
		SELECT COUNT(*) FROM notes WHERE user_id = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	var count int64
	if err := r.dbpool.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}
