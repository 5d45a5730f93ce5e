package domain

import (
	"time"
)

type Role string

const (
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
)

// DefaultRoles 是创建用户时没有显式指定角色的默认值
func DefaultRoles() []Role {
	return []Role{RoleEmployee}
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	IsActive     bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}
