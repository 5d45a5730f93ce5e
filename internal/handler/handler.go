package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/config"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/domain"
)

// Repository 是 handler 需要的存储操作，由 repository.Repository 实现
// 用接口是为了能在测试中用内存实现替换掉数据库
type Repository interface {
	GetAllUsers() ([]*domain.User, error)
	GetUserByID(id int64) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	GetUserByUsernameFold(username string) (*domain.User, error)
	CreateUser(user *domain.User) error
	UpdateUser(user *domain.User) error
	DeleteUser(id int64) error

	GetAllNotes() ([]*domain.NoteWithUsername, error)
	GetNoteByID(id int64) (*domain.Note, error)
	GetNoteByTitle(title string) (*domain.Note, error)
	CreateNote(note *domain.Note) error
	UpdateNote(note *domain.Note) error
	DeleteNote(id int64) error
	CountNotesByUserID(userID int64) (int64, error)
}

// MailPublisher 由 *amqp.Channel 实现
type MailPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Handler struct {
	validate      *validator.Validate
	config        *config.Config
	repository    Repository
	translator    ut.Translator
	mailPublisher MailPublisher
	redisClient   *redis.Client

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo Repository, mailPub MailPublisher, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:      validate,
		config:        cfg,
		repository:    repo,
		translator:    trans,
		mailPublisher: mailPub,
		redisClient:   rdb,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 首页
	h.Mux.Get("/", h.Index)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.With(h.loginLimiter).Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	// id 放在请求体里而不是 URL 里，这是前端约定好的接口形状
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.GetAllUsers)
			r.Post("/", h.CreateUser)
			r.Patch("/", h.UpdateUser)
			r.Delete("/", h.DeleteUser)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.GetAllNotes)
			r.Post("/", h.CreateNote)
			r.Patch("/", h.UpdateNote)
			r.Delete("/", h.DeleteNote)
		})
	})
}
