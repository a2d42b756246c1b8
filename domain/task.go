package domain

import (
	"strings"
	"time"
)

// Status identifies the board column a task belongs to.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
)

// Statuses lists every column in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Priority is the urgency label of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether s is one of the known columns.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Rank is the column position of s on the board, or -1 when unknown.
func (s Status) Rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Rank orders priorities low < medium < high; unknown values rank -1.
func (p Priority) Rank() int {
	for i, v := range Priorities {
		if v == p {
			return i
		}
	}
	return -1
}

// ParseStatus converts user input into a Status. An empty string is rejected;
// callers that want the default column handle it before parsing.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", Invalid("status", "unknown status %q", raw)
	}
	return s, nil
}

// ParsePriority converts user input into a Priority.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", Invalid("priority", "unknown priority %q", raw)
	}
	return p, nil
}

// File is attachment metadata. The board never dereferences URL.
type File struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Task represents a single board item.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	DueDate     *Date     `json:"dueDate,omitempty"`
	Category    string    `json:"category,omitempty"`
	AssignedTo  string    `json:"assignedTo,omitempty"`
	Order       int       `json:"order"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Files       []File    `json:"files,omitempty"`
}

// Clone returns a copy that shares no memory with t.
func (t Task) Clone() Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.Files != nil {
		t.Files = append([]File(nil), t.Files...)
	}
	return t
}

// NewTask carries the caller supplied fields for task creation.
// Zero Status and Priority select the defaults.
type NewTask struct {
	Title       string
	Description string
	Status      Status
	Priority    Priority
	DueDate     *Date
	Category    string
	AssignedTo  string
	Files       []File
}

// TaskPatch carries partial updates for a task. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	DueDate     *Date
	// ClearDueDate removes the due date; it wins over DueDate.
	ClearDueDate bool
	Category     *string
	AssignedTo   *string
	Files        *[]File
	// Order repositions the task within its (possibly new) column.
	Order *int
	// IfVersion rejects the update with a ConflictError when the stored
	// version differs.
	IfVersion *int64
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.DueDate == nil && !p.ClearDueDate && p.Category == nil && p.AssignedTo == nil &&
		p.Files == nil && p.Order == nil
}
