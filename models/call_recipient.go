package models

// CallRecipient — человек, которого нужно разбудить при появлении нового подарка.
// TelegramID — username (можно с @), ссылка t.me или номер телефона в формате +7...
// Достаточно одного из полей, но без обоих получатель недоступен.
type CallRecipient struct {
	TelegramID  string `json:"id"`
	PhoneNumber string `json:"phone"`
}

// Reachable сообщает, есть ли у получателя хотя бы один канал связи.
func (r CallRecipient) Reachable() bool {
	return r.TelegramID != "" || r.PhoneNumber != ""
}
