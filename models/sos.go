package models

import "time"

// Sos хранит сведения о критическом событии радара.
// Source указывает компонент, в котором произошёл сбой (radar, alerts).
type Sos struct {
	ID       int       `json:"id"`
	DateTime time.Time `json:"date_time"`
	Source   string    `json:"source"`
	Msg      string    `json:"msg"`
}
