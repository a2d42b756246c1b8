package domain

import "time"

const (
	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskMoved   = "task-moved"
	TaskDeleted = "task-deleted"
	BoardLoaded = "board-loaded"
)

// ChangeEvent describes a committed board mutation.
type ChangeEvent struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId,omitempty"`
	// Task is the state after the change; nil for deletions and loads.
	Task     *Task     `json:"task,omitempty"`
	Revision uint64    `json:"revision"`
	Time     time.Time `json:"time"`
}
