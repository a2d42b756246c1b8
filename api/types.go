package api

import (
	"context"

	"github.com/Manideep9308/task-flow-sub000/board"
	"github.com/Manideep9308/task-flow-sub000/domain"
)

// Board is the task store as seen by the handlers. *board.Store implements it.
type Board interface {
	Create(in domain.NewTask) (domain.Task, error)
	Update(id string, p domain.TaskPatch) (domain.Task, error)
	Delete(id string) error
	Move(id string, status domain.Status, order int) (domain.Task, error)
	MoveIfVersion(id string, status domain.Status, order int, version int64) (domain.Task, error)
	Get(id string) (domain.Task, error)
	Snapshot() []domain.Task
	Len() int
	Revision() uint64
	Subscribe(o board.Observer)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper remembers Idempotency-Key values of create requests so that a
// retried request returns the task created by the first attempt.
type Deduper interface {
	// Add reserves the key and returns true if it was newly added.
	Add(ctx context.Context, scope, key string) (bool, error)
	// Complete records the task created for a reserved key.
	Complete(ctx context.Context, scope, key, taskID string) error
	// Lookup returns the task id stored for key, or "" while the first
	// request is still in flight or the key is unknown.
	Lookup(ctx context.Context, scope, key string) (string, error)
	// Remove releases a reservation after the create failed.
	Remove(ctx context.Context, scope, key string) error
}
