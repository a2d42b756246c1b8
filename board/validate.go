package board

import (
	"strings"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

func validTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", domain.Invalid("title", "must not be empty")
	}
	return trimmed, nil
}

func newTask(in domain.NewTask) (domain.Task, error) {
	title, err := validTitle(in.Title)
	if err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		Title:       title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Category:    in.Category,
		AssignedTo:  in.AssignedTo,
	}
	if t.Status == "" {
		t.Status = domain.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if !t.Status.Valid() {
		return domain.Task{}, domain.Invalid("status", "unknown status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return domain.Task{}, domain.Invalid("priority", "unknown priority %q", t.Priority)
	}
	if in.DueDate != nil {
		d := *in.DueDate
		t.DueDate = &d
	}
	if in.Files != nil {
		t.Files = append([]domain.File(nil), in.Files...)
	}
	return t, nil
}

// applyPatch copies every field of p except Status and Order onto t after
// validating the whole patch. Column placement is handled by the caller.
func applyPatch(t *domain.Task, p domain.TaskPatch) error {
	if p.Status != nil && !p.Status.Valid() {
		return domain.Invalid("status", "unknown status %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return domain.Invalid("priority", "unknown priority %q", *p.Priority)
	}
	if p.Order != nil && *p.Order < 0 {
		return domain.Invalid("order", "must not be negative, got %d", *p.Order)
	}
	if p.Title != nil {
		title, err := validTitle(*p.Title)
		if err != nil {
			return err
		}
		t.Title = title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.Files != nil {
		t.Files = append([]domain.File(nil), (*p.Files)...)
	}
	return nil
}

func checkVersion(t *domain.Task, want *int64) error {
	if want == nil || *want == t.Version {
		return nil
	}
	return &domain.ConflictError{ID: t.ID, Expected: *want, Actual: t.Version}
}

// normalise validates a task read from persistence and fills defaults.
func normalise(t *domain.Task) error {
	title, err := validTitle(t.Title)
	if err != nil {
		return err
	}
	t.Title = title
	if t.Status == "" {
		t.Status = domain.StatusTodo
	}
	if !t.Status.Valid() {
		return domain.Invalid("status", "task %s has unknown status %q", t.ID, t.Status)
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if !t.Priority.Valid() {
		return domain.Invalid("priority", "task %s has unknown priority %q", t.ID, t.Priority)
	}
	if t.Version < 1 {
		t.Version = 1
	}
	return nil
}
