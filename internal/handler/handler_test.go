package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/config"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/domain"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

// fakeRepository 是 handler.Repository 的内存实现
// 唯一索引的行为也要模拟出来，让约束冲突的分支可以被测试到
type fakeRepository struct {
	users      map[int64]*domain.User
	notes      map[int64]*domain.Note
	nextUserID int64
	nextNoteID int64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:      make(map[int64]*domain.User),
		notes:      make(map[int64]*domain.Note),
		nextUserID: 1,
		nextNoteID: 1,
	}
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.Roles = append([]domain.Role{}, u.Roles...)
	return &c
}

func copyNote(n *domain.Note) *domain.Note {
	c := *n
	return &c
}

func (f *fakeRepository) GetAllUsers() ([]*domain.User, error) {
	users := make([]*domain.User, 0)
	for id := int64(1); id < f.nextUserID; id++ {
		if u, ok := f.users[id]; ok {
			users = append(users, copyUser(u))
		}
	}
	return users, nil
}

func (f *fakeRepository) GetUserByID(id int64) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyUser(u), nil
}

func (f *fakeRepository) GetUserByUsername(username string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRepository) GetUserByUsernameFold(username string) (*domain.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) {
			return copyUser(u), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRepository) CreateUser(user *domain.User) error {
	for _, u := range f.users {
		if strings.EqualFold(u.Username, user.Username) {
			return &pgconn.PgError{Code: "23505", ConstraintName: "users_username_lower_key"}
		}
	}
	user.ID = f.nextUserID
	user.IsActive = true
	f.nextUserID++
	f.users[user.ID] = copyUser(user)
	return nil
}

func (f *fakeRepository) UpdateUser(user *domain.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	for _, u := range f.users {
		if u.ID != user.ID && strings.EqualFold(u.Username, user.Username) {
			return &pgconn.PgError{Code: "23505", ConstraintName: "users_username_lower_key"}
		}
	}
	f.users[user.ID] = copyUser(user)
	return nil
}

func (f *fakeRepository) DeleteUser(id int64) error {
	delete(f.users, id)
	return nil
}

func (f *fakeRepository) GetAllNotes() ([]*domain.NoteWithUsername, error) {
	notes := make([]*domain.NoteWithUsername, 0)
	for id := int64(1); id < f.nextNoteID; id++ {
		n, ok := f.notes[id]
		if !ok {
			continue
		}
		note := &domain.NoteWithUsername{Note: *copyNote(n)}
		if u, ok := f.users[n.UserID]; ok {
			username := u.Username
			note.Username = &username
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func (f *fakeRepository) GetNoteByID(id int64) (*domain.Note, error) {
	n, ok := f.notes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyNote(n), nil
}

func (f *fakeRepository) GetNoteByTitle(title string) (*domain.Note, error) {
	for _, n := range f.notes {
		if n.Title == title {
			return copyNote(n), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRepository) CreateNote(note *domain.Note) error {
	for _, n := range f.notes {
		if n.Title == note.Title {
			return &pgconn.PgError{Code: "23505", ConstraintName: "notes_title_key"}
		}
	}
	note.ID = f.nextNoteID
	f.nextNoteID++
	f.notes[note.ID] = copyNote(note)
	return nil
}

func (f *fakeRepository) UpdateNote(note *domain.Note) error {
	if _, ok := f.notes[note.ID]; !ok {
		return sql.ErrNoRows
	}
	for _, n := range f.notes {
		if n.ID != note.ID && n.Title == note.Title {
			return &pgconn.PgError{Code: "23505", ConstraintName: "notes_title_key"}
		}
	}
	f.notes[note.ID] = copyNote(note)
	return nil
}

func (f *fakeRepository) DeleteNote(id int64) error {
	delete(f.notes, id)
	return nil
}

func (f *fakeRepository) CountNotesByUserID(userID int64) (int64, error) {
	var count int64
	for _, n := range f.notes {
		if n.UserID == userID {
			count++
		}
	}
	return count, nil
}

type fakePublisher struct {
	published [][]byte
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.published = append(f.published, msg.Body)
	return nil
}

func newTestHandler(t *testing.T) (*handler.Handler, *fakeRepository, *fakePublisher) {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiration = 3600
	cfg.RabbitMQ.PublishTimeout = 5
	cfg.Email.NotifyTo = "ops@example.com"

	repo := newFakeRepository()
	pub := &fakePublisher{}

	h, err := handler.NewHandler(cfg, repo, pub, nil)
	require.NoError(t, err)

	return h, repo, pub
}

// envelope 是响应体的统一格式，Data 留给各个测试自己再解码
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, hf http.HandlerFunc, method string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, "/", reader)
	w := httptest.NewRecorder()
	hf(w, r)

	env := envelope{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	return w, env
}

func mustCreateUser(t *testing.T, repo *fakeRepository, username, password string, roles []domain.Role) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Roles:        roles,
	}
	require.NoError(t, repo.CreateUser(user))

	return user
}

func mustCreateNote(t *testing.T, repo *fakeRepository, title, text string, userID int64) *domain.Note {
	t.Helper()

	note := &domain.Note{
		Title:  title,
		Text:   text,
		UserID: userID,
	}
	require.NoError(t, repo.CreateNote(note))

	return note
}
