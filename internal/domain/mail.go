package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

// NewAccountMailData 是新账户通知邮件的内容
// 用户记录里没有邮箱字段，所以邮件发给配置中的通知邮箱
type NewAccountMailData struct {
	Username string `json:"username"`
}
