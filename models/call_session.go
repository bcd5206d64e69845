package models

// CallSession — звонок внутри Telegram, начатый радаром.
// Live означает, что сервер вернул звонок с access hash и его можно сбросить.
type CallSession struct {
	ID         int64
	AccessHash int64
	Live       bool
}

// EditResult — итог редактирования сообщения.
type EditResult int

const (
	EditOK EditResult = iota
	// EditNotModified — Telegram сообщил, что текст не изменился.
	EditNotModified
)

func (r EditResult) String() string {
	if r == EditNotModified {
		return "not_modified"
	}
	return "ok"
}
