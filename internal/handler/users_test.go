package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/tech-notes/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func TestGetAllUsers(t *testing.T) {
	t.Run("空列表返回 404", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		w, env := doRequest(t, h.GetAllUsers, http.MethodGet, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "No users found", env.Message)
	})

	t.Run("返回所有用户且不包含密码哈希", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())
		mustCreateUser(t, repo, "Bob", "secret2", []domain.Role{domain.RoleEmployee, domain.RoleManager})

		w, env := doRequest(t, h.GetAllUsers, http.MethodGet, nil)

		require.Equal(t, http.StatusOK, w.Code)

		var users []domain.User
		require.NoError(t, json.Unmarshal(env.Data, &users))
		require.Len(t, users, 2)
		assert.Equal(t, "Alice", users[0].Username)
		assert.Equal(t, "Bob", users[1].Username)

		assert.NotContains(t, w.Body.String(), "password")
		assert.NotContains(t, w.Body.String(), "hash")
	})
}

func TestCreateUser(t *testing.T) {
	t.Run("缺少用户名或密码返回 400", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		w, _ := doRequest(t, h.CreateUser, http.MethodPost, map[string]any{"username": "Alice"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = doRequest(t, h.CreateUser, http.MethodPost, map[string]any{"password": "secret1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("创建成功并使用默认角色", func(t *testing.T) {
		h, repo, pub := newTestHandler(t)

		w, env := doRequest(t, h.CreateUser, http.MethodPost, map[string]any{
			"username": "Alice",
			"password": "secret1",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, env.Success)
		assert.Equal(t, "New user Alice created", env.Message)

		user, err := repo.GetUserByUsername("Alice")
		require.NoError(t, err)
		assert.Equal(t, []domain.Role{domain.RoleEmployee}, user.Roles)
		assert.True(t, user.IsActive)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))

		// 创建用户后会向通知邮箱发送一封邮件
		require.Len(t, pub.published, 1)
		mailMessage := domain.MailMessage{}
		require.NoError(t, json.Unmarshal(pub.published[0], &mailMessage))
		assert.Equal(t, "new_account", mailMessage.Type)
		assert.Equal(t, "ops@example.com", mailMessage.To)
	})

	t.Run("显式指定的角色原样保存", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)

		w, _ := doRequest(t, h.CreateUser, http.MethodPost, map[string]any{
			"username": "Bob",
			"password": "secret2",
			"roles":    []string{"Employee", "Admin"},
		})

		require.Equal(t, http.StatusCreated, w.Code)

		user, err := repo.GetUserByUsername("Bob")
		require.NoError(t, err)
		assert.Equal(t, []domain.Role{domain.RoleEmployee, domain.RoleAdmin}, user.Roles)
	})

	t.Run("非法的角色返回 400", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		w, _ := doRequest(t, h.CreateUser, http.MethodPost, map[string]any{
			"username": "Carol",
			"password": "secret3",
			"roles":    []string{"Superuser"},
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("用户名重复时返回 409，比较时忽略大小写", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())

		w, env := doRequest(t, h.CreateUser, http.MethodPost, map[string]any{
			"username": "alice",
			"password": "x",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Duplicate username", env.Message)
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("缺少必填字段返回 400", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		user := mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())

		cases := []map[string]any{
			{"username": "Alice", "roles": []string{"Employee"}, "active": true},        // 缺 id
			{"id": user.ID, "roles": []string{"Employee"}, "active": true},              // 缺 username
			{"id": user.ID, "username": "Alice", "active": true},                        // 缺 roles
			{"id": user.ID, "username": "Alice", "roles": []string{}, "active": true},   // roles 为空
			{"id": user.ID, "username": "Alice", "roles": []string{"Employee"}},         // 缺 active
			{"id": user.ID, "username": "Alice", "roles": "Employee", "active": true},   // roles 不是数组
			{"id": user.ID, "username": "Alice", "roles": []string{"Employee"}, "active": "yes"}, // active 不是布尔值
		}

		for i, body := range cases {
			w, _ := doRequest(t, h.UpdateUser, http.MethodPatch, body)
			assert.Equalf(t, http.StatusBadRequest, w.Code, "case %d", i)
		}
	})

	t.Run("用户不存在返回 404", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		w, env := doRequest(t, h.UpdateUser, http.MethodPatch, map[string]any{
			"id":       999,
			"username": "Alice",
			"roles":    []string{"Employee"},
			"active":   true,
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "User not found", env.Message)
	})

	t.Run("新用户名被其他用户占用返回 409", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())
		bob := mustCreateUser(t, repo, "Bob", "secret2", domain.DefaultRoles())

		w, env := doRequest(t, h.UpdateUser, http.MethodPatch, map[string]any{
			"id":       bob.ID,
			"username": "ALICE",
			"roles":    []string{"Employee"},
			"active":   true,
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Duplicate username", env.Message)
	})

	t.Run("改回自己当前的用户名是允许的", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		user := mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())

		w, env := doRequest(t, h.UpdateUser, http.MethodPatch, map[string]any{
			"id":       user.ID,
			"username": "Alice",
			"roles":    []string{"Employee"},
			"active":   true,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Alice updated", env.Message)
	})

	t.Run("字段整体替换", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		user := mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())

		w, env := doRequest(t, h.UpdateUser, http.MethodPatch, map[string]any{
			"id":       user.ID,
			"username": "Alicia",
			"roles":    []string{"Employee", "Manager"},
			"active":   false,
		})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Alicia updated", env.Message)

		updated, err := repo.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alicia", updated.Username)
		assert.Equal(t, []domain.Role{domain.RoleEmployee, domain.RoleManager}, updated.Roles)
		assert.False(t, updated.IsActive)
	})

	t.Run("不提供密码时保留原来的哈希", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		user := mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())
		oldHash := user.PasswordHash

		w, _ := doRequest(t, h.UpdateUser, http.MethodPatch, map[string]any{
			"id":       user.ID,
			"username": "Alice",
			"roles":    []string{"Employee"},
			"active":   true,
		})

		require.Equal(t, http.StatusOK, w.Code)

		updated, err := repo.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, oldHash, updated.PasswordHash)
	})

	t.Run("提供新密码时重新哈希", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		user := mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())
		oldHash := user.PasswordHash

		w, _ := doRequest(t, h.UpdateUser, http.MethodPatch, map[string]any{
			"id":       user.ID,
			"username": "Alice",
			"roles":    []string{"Employee"},
			"active":   true,
			"password": "newsecret",
		})

		require.Equal(t, http.StatusOK, w.Code)

		updated, err := repo.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.NotEqual(t, oldHash, updated.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newsecret")))
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("缺少 id 返回 400", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		w, _ := doRequest(t, h.DeleteUser, http.MethodDelete, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("用户还有笔记时返回 409 且数据不变", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		user := mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())
		note := mustCreateNote(t, repo, "Groceries", "milk", user.ID)

		w, env := doRequest(t, h.DeleteUser, http.MethodDelete, map[string]any{"id": user.ID})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "User has assigned Notes", env.Message)

		_, err := repo.GetUserByID(user.ID)
		assert.NoError(t, err)
		_, err = repo.GetNoteByID(note.ID)
		assert.NoError(t, err)
	})

	t.Run("用户不存在返回 404", func(t *testing.T) {
		h, _, _ := newTestHandler(t)

		w, env := doRequest(t, h.DeleteUser, http.MethodDelete, map[string]any{"id": 999})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "User not found", env.Message)
	})

	t.Run("没有笔记的用户可以删除", func(t *testing.T) {
		h, repo, _ := newTestHandler(t)
		user := mustCreateUser(t, repo, "Alice", "secret1", domain.DefaultRoles())

		w, env := doRequest(t, h.DeleteUser, http.MethodDelete, map[string]any{"id": user.ID})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, fmt.Sprintf("Username Alice with ID %d deleted", user.ID), env.Message)

		_, err := repo.GetUserByID(user.ID)
		assert.Error(t, err)
	})
}
