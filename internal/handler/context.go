package handler

type ContextKey string

var (
	UsernameCtxKey ContextKey = "username"
	SubCtxKey      ContextKey = "sub"
)
