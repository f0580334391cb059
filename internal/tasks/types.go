package tasks

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task is a task record as stored by the service.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	DueDate     *Date     `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTask is the body of a create request. All fields are always sent;
// a nil DueDate is sent as null.
type NewTask struct {
	Title       string `json:"title" validate:"notblank,max=255"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	DueDate     *Date  `json:"due_date"`
}

// Patch describes a partial update. Only non-nil fields are sent.
// ClearDueDate sends an explicit null due date and cannot be combined with DueDate.
type Patch struct {
	Title        *string `validate:"omitnil,notblank,max=255"`
	Description  *string
	Completed    *bool
	DueDate      *Date `validate:"excluded_with=ClearDueDate"`
	ClearDueDate bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil && p.DueDate == nil && !p.ClearDueDate
}

// MarshalJSON encodes only the fields being changed.
func (p Patch) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, 4)
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Completed != nil {
		fields["completed"] = *p.Completed
	}
	switch {
	case p.DueDate != nil:
		fields["due_date"] = *p.DueDate
	case p.ClearDueDate:
		fields["due_date"] = nil
	}
	return json.Marshal(fields)
}

// Date is a calendar date without a time component, encoded as YYYY-MM-DD.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// DateOf returns the date on which t occurs in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
