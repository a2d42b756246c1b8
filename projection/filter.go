package projection

import (
	"cmp"
	"iter"
	"slices"
	"strings"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

// Query selects tasks. Zero fields match everything.
type Query struct {
	// Text is matched case-insensitively against title, description and category.
	Text       string
	Statuses   []domain.Status
	Priorities []domain.Priority
}

// Matches reports whether t satisfies every part of q.
func (q Query) Matches(t domain.Task) bool {
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, t.Status) {
		return false
	}
	if len(q.Priorities) > 0 && !slices.Contains(q.Priorities, t.Priority) {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return true
	}
	for _, field := range []string{t.Title, t.Description, t.Category} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}

// SortKey names a Task field.
type SortKey string

const (
	SortByID          SortKey = "id"
	SortByTitle       SortKey = "title"
	SortByDescription SortKey = "description"
	SortByStatus      SortKey = "status"
	SortByPriority    SortKey = "priority"
	SortByDueDate     SortKey = "dueDate"
	SortByCategory    SortKey = "category"
	SortByAssignedTo  SortKey = "assignedTo"
	SortByOrder       SortKey = "order"
	SortByCreatedAt   SortKey = "createdAt"
	SortByUpdatedAt   SortKey = "updatedAt"
	SortByVersion     SortKey = "version"
)

var comparators = map[SortKey]func(a, b domain.Task) int{
	SortByID:          func(a, b domain.Task) int { return strings.Compare(a.ID, b.ID) },
	SortByTitle:       func(a, b domain.Task) int { return strings.Compare(a.Title, b.Title) },
	SortByDescription: func(a, b domain.Task) int { return strings.Compare(a.Description, b.Description) },
	SortByStatus:      func(a, b domain.Task) int { return cmp.Compare(a.Status.Rank(), b.Status.Rank()) },
	SortByPriority:    func(a, b domain.Task) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) },
	SortByDueDate:     func(a, b domain.Task) int { return a.DueDate.Compare(*b.DueDate) },
	SortByCategory:    func(a, b domain.Task) int { return strings.Compare(a.Category, b.Category) },
	SortByAssignedTo:  func(a, b domain.Task) int { return strings.Compare(a.AssignedTo, b.AssignedTo) },
	SortByOrder:       func(a, b domain.Task) int { return cmp.Compare(a.Order, b.Order) },
	SortByCreatedAt:   func(a, b domain.Task) int { return a.CreatedAt.Compare(b.CreatedAt) },
	SortByUpdatedAt:   func(a, b domain.Task) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	SortByVersion:     func(a, b domain.Task) int { return cmp.Compare(a.Version, b.Version) },
}

// ParseSortKey validates a sort key taken from user input. The empty string
// is accepted and keeps board order.
func ParseSortKey(raw string) (SortKey, error) {
	key := SortKey(strings.TrimSpace(raw))
	if key == "" {
		return "", nil
	}
	if _, ok := comparators[key]; !ok {
		return "", domain.Invalid("sort", "unknown sort key %q", raw)
	}
	return key, nil
}

// Sort orders a filtered sequence. Tasks without a due date always sort last
// by dueDate, regardless of direction.
type Sort struct {
	Key  SortKey
	Desc bool
}

func (s Sort) compare(a, b domain.Task) int {
	if s.Key == SortByDueDate && (a.DueDate == nil || b.DueDate == nil) {
		return cmp.Compare(missing(a.DueDate), missing(b.DueDate))
	}
	c := comparators[s.Key](a, b)
	if s.Desc {
		return -c
	}
	return c
}

func missing(d *domain.Date) int {
	if d == nil {
		return 1
	}
	return 0
}

// Filter yields the tasks matching q sorted by s. The snapshot is taken when
// iteration starts. Equal elements keep their board order; an empty or
// unknown key leaves board order unchanged.
func Filter(src Source, q Query, s Sort) iter.Seq[domain.Task] {
	return func(yield func(domain.Task) bool) {
		var tasks []domain.Task
		for _, t := range src.Snapshot() {
			if q.Matches(t) {
				tasks = append(tasks, t)
			}
		}
		if _, ok := comparators[s.Key]; ok {
			slices.SortStableFunc(tasks, s.compare)
		}
		for _, t := range tasks {
			if !yield(t) {
				return
			}
		}
	}
}
