// Package board holds the authoritative task collection behind the Kanban
// board. Every mutation goes through Store, which keeps each column's order
// dense (0..n-1), task ids unique and UpdatedAt monotonic.
package board

import (
	"cmp"
	"errors"
	"iter"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

const maxIDAttempts = 8

var errIDExhausted = errors.New("board: unable to allocate a unique task id")

// Observer is notified after a mutation has been committed. Observers run on
// the mutating goroutine with the store lock released.
type Observer func(domain.ChangeEvent)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock.now = now }
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithObserver registers an observer at construction time.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

// Store is safe for concurrent use; operations are serialised by a single
// lock and each one either commits completely or leaves the store unchanged.
type Store struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.Task
	columns  map[domain.Status][]string
	revision uint64
	clock    clock
	newID    func() string

	obsMu     sync.RWMutex
	observers []Observer
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		tasks:   make(map[string]*domain.Task),
		columns: make(map[domain.Status][]string, len(domain.Statuses)),
		clock:   clock{now: time.Now},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer for subsequent mutations.
func (s *Store) Subscribe(o Observer) {
	s.obsMu.Lock()
	s.observers = append(s.observers, o)
	s.obsMu.Unlock()
}

func (s *Store) emit(ev domain.ChangeEvent) {
	s.obsMu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.obsMu.RUnlock()
	for _, o := range observers {
		o(ev)
	}
}

// Create appends a new task to the end of its column.
func (s *Store) Create(in domain.NewTask) (domain.Task, error) {
	t, err := newTask(in)
	if err != nil {
		return domain.Task{}, err
	}
	ev, err := s.create(t)
	if err != nil {
		return domain.Task{}, err
	}
	s.emit(ev)
	return ev.Task.Clone(), nil
}

func (s *Store) create(t domain.Task) (domain.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.allocateID()
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	now := s.clock.next()
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1

	col := s.columns[t.Status]
	p := plan{t.Status: {ids: appendID(col, id), want: len(col) + 1}}
	if err := s.commit(p, &t, ""); err != nil {
		return domain.ChangeEvent{}, err
	}
	return s.event(domain.TaskCreated, &t, now), nil
}

func (s *Store) allocateID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if id == "" {
			continue
		}
		if _, taken := s.tasks[id]; !taken {
			return id, nil
		}
	}
	return "", errIDExhausted
}

// Update applies a partial change. A status change, or an explicit Order, is
// carried out as a move; a status change without an Order appends the task
// to its new column.
func (s *Store) Update(id string, p domain.TaskPatch) (domain.Task, error) {
	ev, err := s.update(id, p)
	if err != nil {
		return domain.Task{}, err
	}
	s.emit(ev)
	return ev.Task.Clone(), nil
}

func (s *Store) update(id string, p domain.TaskPatch) (domain.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[id]
	if !ok {
		return domain.ChangeEvent{}, &domain.NotFoundError{ID: id}
	}
	if p.Empty() {
		return domain.ChangeEvent{}, domain.Invalid("", "update has no fields")
	}
	if err := checkVersion(cur, p.IfVersion); err != nil {
		return domain.ChangeEvent{}, err
	}
	next := cur.Clone()
	if err := applyPatch(&next, p); err != nil {
		return domain.ChangeEvent{}, err
	}

	var pl plan
	target := cur.Status
	if p.Status != nil {
		target = *p.Status
	}
	if target != cur.Status || p.Order != nil {
		idx := math.MaxInt
		if p.Order != nil {
			idx = *p.Order
		}
		var err error
		if pl, err = s.relocate(cur, target, idx); err != nil {
			return domain.ChangeEvent{}, err
		}
		next.Status = target
	}

	now := s.clock.next()
	next.UpdatedAt = now
	next.Version++
	if err := s.commit(pl, &next, ""); err != nil {
		return domain.ChangeEvent{}, err
	}
	return s.event(domain.TaskUpdated, &next, now), nil
}

// Move relocates a task to position order of column status. Orders past the
// end of the destination column append the task.
func (s *Store) Move(id string, status domain.Status, order int) (domain.Task, error) {
	return s.moveAndEmit(id, status, order, nil)
}

// MoveIfVersion is Move guarded by the caller's view of the task version.
func (s *Store) MoveIfVersion(id string, status domain.Status, order int, version int64) (domain.Task, error) {
	return s.moveAndEmit(id, status, order, &version)
}

func (s *Store) moveAndEmit(id string, status domain.Status, order int, version *int64) (domain.Task, error) {
	ev, err := s.move(id, status, order, version)
	if err != nil {
		return domain.Task{}, err
	}
	s.emit(ev)
	return ev.Task.Clone(), nil
}

func (s *Store) move(id string, status domain.Status, order int, version *int64) (domain.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[id]
	if !ok {
		return domain.ChangeEvent{}, &domain.NotFoundError{ID: id}
	}
	if order < 0 {
		return domain.ChangeEvent{}, domain.Invalid("order", "must not be negative, got %d", order)
	}
	if !status.Valid() {
		return domain.ChangeEvent{}, domain.Invalid("status", "unknown status %q", status)
	}
	if err := checkVersion(cur, version); err != nil {
		return domain.ChangeEvent{}, err
	}

	pl, err := s.relocate(cur, status, order)
	if err != nil {
		return domain.ChangeEvent{}, err
	}
	next := cur.Clone()
	next.Status = status
	now := s.clock.next()
	next.UpdatedAt = now
	next.Version++
	if err := s.commit(pl, &next, ""); err != nil {
		return domain.ChangeEvent{}, err
	}
	return s.event(domain.TaskMoved, &next, now), nil
}

// relocate stages the column sequences for moving cur to index idx of status.
func (s *Store) relocate(cur *domain.Task, status domain.Status, idx int) (plan, error) {
	src := s.columns[cur.Status]
	pos := indexOf(src, cur.ID)
	if pos < 0 {
		return nil, &domain.InvariantViolationError{Status: cur.Status, Detail: "task " + cur.ID + " missing from its column"}
	}
	rest := removeAt(src, pos)
	if status == cur.Status {
		return plan{status: {ids: insertAt(rest, clamp(idx, len(rest)), cur.ID), want: len(src)}}, nil
	}
	dst := s.columns[status]
	return plan{
		cur.Status: {ids: rest, want: len(src) - 1},
		status:     {ids: insertAt(dst, clamp(idx, len(dst)), cur.ID), want: len(dst) + 1},
	}, nil
}

// Delete removes a task and closes the gap it leaves in its column.
func (s *Store) Delete(id string) error {
	ev, err := s.delete(id)
	if err != nil {
		return err
	}
	s.emit(ev)
	return nil
}

func (s *Store) delete(id string) (domain.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[id]
	if !ok {
		return domain.ChangeEvent{}, &domain.NotFoundError{ID: id}
	}
	src := s.columns[cur.Status]
	pos := indexOf(src, id)
	if pos < 0 {
		return domain.ChangeEvent{}, &domain.InvariantViolationError{Status: cur.Status, Detail: "task " + id + " missing from its column"}
	}
	p := plan{cur.Status: {ids: removeAt(src, pos), want: len(src) - 1}}
	if err := s.commit(p, nil, id); err != nil {
		return domain.ChangeEvent{}, err
	}
	ev := s.event(domain.TaskDeleted, nil, s.clock.next())
	ev.TaskID = id
	return ev, nil
}

// commit verifies the staged columns against the post-operation state and
// only then applies them. changed replaces (or adds) one task; removed drops one.
func (s *Store) commit(p plan, changed *domain.Task, removed string) error {
	lookup := func(id string) (*domain.Task, bool) {
		if id == removed {
			return nil, false
		}
		if changed != nil && id == changed.ID {
			return changed, true
		}
		t, ok := s.tasks[id]
		return t, ok
	}
	if err := p.verify(lookup); err != nil {
		return err
	}

	if removed != "" {
		delete(s.tasks, removed)
	}
	if changed != nil {
		s.tasks[changed.ID] = changed
	}
	for status, col := range p {
		s.columns[status] = col.ids
		for i, id := range col.ids {
			s.tasks[id].Order = i
		}
	}
	s.revision++
	return nil
}

func (s *Store) event(typ string, t *domain.Task, at time.Time) domain.ChangeEvent {
	ev := domain.ChangeEvent{Type: typ, Revision: s.revision, Time: at}
	if t != nil {
		cp := t.Clone()
		ev.Task = &cp
		ev.TaskID = t.ID
	}
	return ev
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	return t.Clone(), nil
}

// ByStatus yields the tasks of one column in order. The column is read when
// iteration starts, so every range over the sequence sees current state.
func (s *Store) ByStatus(status domain.Status) iter.Seq[domain.Task] {
	return func(yield func(domain.Task) bool) {
		for _, t := range s.column(status) {
			if !yield(t) {
				return
			}
		}
	}
}

func (s *Store) column(status domain.Status) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.columns[status]
	out := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.tasks[id].Clone())
	}
	return out
}

// Snapshot returns every task, column by column in board order.
func (s *Store) Snapshot() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, status := range domain.Statuses {
		for _, id := range s.columns[status] {
			out = append(out, s.tasks[id].Clone())
		}
	}
	return out
}

// Len is the number of tasks on the board.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Revision counts committed mutations, including loads.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Load replaces the board contents with tasks read from persistence. Orders
// are normalised per column by (order, createdAt, id) so slightly
// inconsistent snapshots still load densely.
func (s *Store) Load(tasks []domain.Task) error {
	ev, err := s.load(tasks)
	if err != nil {
		return err
	}
	s.emit(ev)
	return nil
}

func (s *Store) load(tasks []domain.Task) (domain.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := make(map[string]*domain.Task, len(tasks))
	grouped := make(map[domain.Status][]*domain.Task, len(domain.Statuses))
	var latest time.Time
	for i := range tasks {
		t := tasks[i].Clone()
		if strings.TrimSpace(t.ID) == "" {
			return domain.ChangeEvent{}, domain.Invalid("id", "task at position %d has no id", i)
		}
		if _, dup := loaded[t.ID]; dup {
			return domain.ChangeEvent{}, domain.Invalid("id", "duplicate task id %q", t.ID)
		}
		if err := normalise(&t); err != nil {
			return domain.ChangeEvent{}, err
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.clock.now().UTC()
		}
		if t.UpdatedAt.Before(t.CreatedAt) {
			t.UpdatedAt = t.CreatedAt
		}
		if t.UpdatedAt.After(latest) {
			latest = t.UpdatedAt
		}
		loaded[t.ID] = &t
		grouped[t.Status] = append(grouped[t.Status], &t)
	}

	columns := make(map[domain.Status][]string, len(grouped))
	for status, col := range grouped {
		slices.SortStableFunc(col, func(a, b *domain.Task) int {
			return cmp.Or(
				cmp.Compare(a.Order, b.Order),
				a.CreatedAt.Compare(b.CreatedAt),
				strings.Compare(a.ID, b.ID),
			)
		})
		ids := make([]string, len(col))
		for i, t := range col {
			t.Order = i
			ids[i] = t.ID
		}
		columns[status] = ids
	}

	s.tasks = loaded
	s.columns = columns
	s.clock.observe(latest)
	s.revision++
	return s.event(domain.BoardLoaded, nil, s.clock.next()), nil
}

// Check verifies the order invariants of the committed state.
func (s *Store) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listed := 0
	for status, ids := range s.columns {
		for i, id := range ids {
			t, ok := s.tasks[id]
			if !ok {
				return &domain.InvariantViolationError{Status: status, Detail: "unknown task " + id}
			}
			if t.Status != status {
				return &domain.InvariantViolationError{Status: status, Detail: "task " + id + " listed in wrong column"}
			}
			if t.Order != i {
				return &domain.InvariantViolationError{Status: status, Detail: "task " + id + " order does not match its position"}
			}
		}
		listed += len(ids)
	}
	if listed != len(s.tasks) {
		return &domain.InvariantViolationError{Detail: "tasks missing from columns"}
	}
	return nil
}
