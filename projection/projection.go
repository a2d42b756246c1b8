// Package projection derives read-only views from the board's current
// contents. Nothing here is cached; every call reads a fresh snapshot.
package projection

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

// Source is anything that can hand out a consistent copy of every task.
// *board.Store satisfies it.
type Source interface {
	Snapshot() []domain.Task
}

// Column is one Kanban column.
type Column struct {
	Status domain.Status `json:"status"`
	Tasks  []domain.Task `json:"tasks"`
}

// DateGroup holds the tasks due on one calendar day.
type DateGroup struct {
	Date  domain.Date   `json:"date"`
	Tasks []domain.Task `json:"tasks"`
}

// Board groups tasks by status. Every status gets a column, in board order,
// and each column is sorted by Order.
func Board(src Source) []Column {
	byStatus := make(map[domain.Status][]domain.Task, len(domain.Statuses))
	for _, t := range src.Snapshot() {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}
	cols := make([]Column, 0, len(domain.Statuses))
	for _, status := range domain.Statuses {
		tasks := byStatus[status]
		if tasks == nil {
			tasks = []domain.Task{}
		}
		slices.SortStableFunc(tasks, func(a, b domain.Task) int {
			return cmp.Compare(a.Order, b.Order)
		})
		cols = append(cols, Column{Status: status, Tasks: tasks})
	}
	return cols
}

// Calendar groups tasks with a due date by that date, earliest first. Within
// a day tasks are ordered by (order, id).
func Calendar(src Source) []DateGroup {
	byDate := make(map[domain.Date][]domain.Task)
	for _, t := range src.Snapshot() {
		if t.DueDate == nil {
			continue
		}
		byDate[*t.DueDate] = append(byDate[*t.DueDate], t)
	}
	groups := make([]DateGroup, 0, len(byDate))
	for d, tasks := range byDate {
		slices.SortFunc(tasks, func(a, b domain.Task) int {
			return cmp.Or(cmp.Compare(a.Order, b.Order), strings.Compare(a.ID, b.ID))
		})
		groups = append(groups, DateGroup{Date: d, Tasks: tasks})
	}
	slices.SortFunc(groups, func(a, b DateGroup) int { return a.Date.Compare(b.Date) })
	return groups
}
