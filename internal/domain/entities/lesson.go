package entities

import "time"

// Lesson is one formatted row of a student's history
type Lesson struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
	Text  string    `json:"text"` // weekday, date and label ready for display
}

// LessonHistory is the page model for the student history view
type LessonHistory struct {
	Lessons []Lesson `json:"lessons"`
	Limit   int      `json:"limit"`
	IsMore  bool     `json:"is_more"`
}

// BalanceStatus reports how a balance cell could be read
type BalanceStatus string

const (
	BalanceOK      BalanceStatus = "ok"
	BalanceLoading BalanceStatus = "loading"
	BalanceError   BalanceStatus = "error"
)

// Balance is the remaining lesson count read from the spreadsheet
type Balance struct {
	Status   BalanceStatus `json:"status"`
	Balance  *int          `json:"balance,omitempty"`
	RawValue string        `json:"raw_value,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// StudentSheet is the raw content of a student's worksheet
type StudentSheet struct {
	History [][]string // B5:C10000, date and description per row
	Balance [][]string // E3:E4
}
