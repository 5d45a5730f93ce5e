package domain

import (
	"time"
)

type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	UserID    int64     `json:"user"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteWithUsername 是笔记列表的返回结构，附带所属用户的用户名
// 如果所属用户已经不存在，Username 为 null
type NoteWithUsername struct {
	Username *string `json:"username"`
	Note
}
