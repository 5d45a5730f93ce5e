package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.repository.GetAllUsers()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 空列表视为错误而不是空成功，和前端的约定保持一致
	if len(users) == 0 {
		h.notFound(w, r, "No users found")
		return
	}

	h.successResponse(w, r, http.StatusOK, "Users retrieved", users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string        `json:"username" validate:"required"`
		Password string        `json:"password" validate:"required"`
		Roles    []domain.Role `json:"roles" validate:"omitempty,dive,oneof=Employee Manager Admin"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 检查用户名是否重复（忽略大小写）
	// 这里只是提前给出更友好的错误，并发时以唯一索引的冲突为准
	if _, err := h.repository.GetUserByUsernameFold(req.Username); err == nil {
		h.conflict(w, r, "Duplicate username")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		h.internalServerError(w, r, err)
		return
	}

	// 对密码进行哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 没有显式指定角色时使用默认角色
	roles := req.Roles
	if len(roles) == 0 {
		roles = domain.DefaultRoles()
	}

	// 插入用户到数据库中
	user := &domain.User{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		Roles:        roles,
	}

	if err := h.repository.CreateUser(user); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "users_username_lower_key":
			h.conflict(w, r, "Duplicate username")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 向通知邮箱发送新账户通知
	if err := h.publishNewAccountMail(user.Username); err != nil {
		// 通知失败不影响用户创建的结果，只记录日志
		h.logInternalServerError(r, err)
	}

	h.successResponse(w, r, http.StatusCreated, fmt.Sprintf("New user %s created", user.Username), nil)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       int64         `json:"id" validate:"required"`
		Username string        `json:"username" validate:"required"`
		Roles    []domain.Role `json:"roles" validate:"required,min=1,dive,oneof=Employee Manager Admin"`
		Active   *bool         `json:"active" validate:"required"`
		Password string        `json:"password"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.repository.GetUserByID(req.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.notFound(w, r, "User not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 检查新用户名是否被其他用户占用，允许改回自己当前的用户名
	if duplicate, err := h.repository.GetUserByUsernameFold(req.Username); err == nil {
		if duplicate.ID != req.ID {
			h.conflict(w, r, "Duplicate username")
			return
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		h.internalServerError(w, r, err)
		return
	}

	user.Username = req.Username
	user.Roles = req.Roles
	user.IsActive = *req.Active

	// 只有提供了新密码时才重新哈希，否则保留原来的哈希
	if req.Password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		user.PasswordHash = string(hashedPassword)
	}

	if err := h.repository.UpdateUser(user); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "users_username_lower_key":
			h.conflict(w, r, "Duplicate username")
		case errors.Is(err, sql.ErrNoRows):
			h.notFound(w, r, "User not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, http.StatusOK, fmt.Sprintf("%s updated", user.Username), nil)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 引用检查：还有笔记属于这个用户时禁止删除
	count, err := h.repository.CountNotesByUserID(req.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if count > 0 {
		h.conflict(w, r, "User has assigned Notes")
		return
	}

	user, err := h.repository.GetUserByID(req.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.notFound(w, r, "User not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.repository.DeleteUser(user.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, http.StatusOK, fmt.Sprintf("Username %s with ID %d deleted", user.Username, user.ID), nil)
}

func (h *Handler) publishNewAccountMail(username string) error {
	mailMessage := domain.MailMessage{
		Type: "new_account",
		To:   h.config.Email.NotifyTo,
		Data: domain.NewAccountMailData{
			Username: username,
		},
	}

	mailData, err := json.Marshal(mailMessage)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	return h.mailPublisher.PublishWithContext(
		ctx,
		"",
		"email_queue",
		true,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        mailData,
		},
	)
}
