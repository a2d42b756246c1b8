package board

import (
	"fmt"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

// Columns are kept as id slices whose positions define Order. The helpers
// below never modify their input so a failed operation leaves the committed
// slices untouched.

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func removeAt(ids []string, idx int) []string {
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:idx]...)
	return append(out, ids[idx+1:]...)
}

func insertAt(ids []string, idx int, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:idx]...)
	out = append(out, id)
	return append(out, ids[idx:]...)
}

func appendID(ids []string, id string) []string {
	return insertAt(ids, len(ids), id)
}

// clamp limits a requested insertion index to [0, n].
func clamp(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx > n {
		return n
	}
	return idx
}

// staged is a replacement sequence for one column together with the number
// of tasks the column must hold once the operation commits.
type staged struct {
	ids  []string
	want int
}

// plan is the set of columns an operation rewrites.
type plan map[domain.Status]staged

// verify checks that every staged column lists each of its tasks exactly once
// and that each listed task carries that column's status. lookup resolves ids
// against the post-operation state.
func (p plan) verify(lookup func(id string) (*domain.Task, bool)) error {
	for status, col := range p {
		if len(col.ids) != col.want {
			return &domain.InvariantViolationError{Status: status, Detail: fmt.Sprintf("column lists %d tasks, expected %d", len(col.ids), col.want)}
		}
		seen := make(map[string]struct{}, len(col.ids))
		for _, id := range col.ids {
			if _, dup := seen[id]; dup {
				return &domain.InvariantViolationError{Status: status, Detail: "duplicate task " + id}
			}
			seen[id] = struct{}{}
			t, ok := lookup(id)
			if !ok {
				return &domain.InvariantViolationError{Status: status, Detail: "unknown task " + id}
			}
			if t.Status != status {
				return &domain.InvariantViolationError{Status: status, Detail: fmt.Sprintf("task %s has status %s", id, t.Status)}
			}
		}
	}
	return nil
}
