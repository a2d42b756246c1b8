package board

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Manideep9308/task-flow-sub000/domain"
	"github.com/Manideep9308/task-flow-sub000/internal/assertx"
)

var fixedNow = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(opts ...Option) *Store {
	n := 0
	base := []Option{
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("t%d", n)
		}),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(append(base, opts...)...)
}

func mustCreate(t *testing.T, s *Store, title string, status domain.Status) domain.Task {
	t.Helper()
	task, err := s.Create(domain.NewTask{Title: title, Status: status})
	if err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	return task
}

func columnIDs(s *Store, status domain.Status) []string {
	var ids []string
	for task := range s.ByStatus(status) {
		ids = append(ids, task.ID)
	}
	return ids
}

func assertDense(t *testing.T, s *Store) {
	t.Helper()
	if err := s.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, status := range domain.Statuses {
		i := 0
		for task := range s.ByStatus(status) {
			if task.Order != i {
				t.Fatalf("column %s: task %s has order %d at position %d", status, task.ID, task.Order, i)
			}
			if task.Status != status {
				t.Fatalf("column %s lists task %s with status %s", status, task.ID, task.Status)
			}
			i++
		}
	}
}

func TestMoveAcrossColumns(t *testing.T) {
	s := newTestStore()
	tasks := []domain.Task{
		mustCreate(t, s, "a", ""),
		mustCreate(t, s, "b", ""),
		mustCreate(t, s, "c", ""),
	}

	moved, err := s.Move(tasks[1].ID, domain.StatusInProgress, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	assertx.EqualSlices(t, []string{tasks[0].ID, tasks[2].ID}, columnIDs(s, domain.StatusTodo))
	assertx.EqualSlices(t, []string{tasks[1].ID}, columnIDs(s, domain.StatusInProgress))
	assertx.Equal(t, 0, moved.Order)
	assertx.Equal(t, domain.StatusInProgress, moved.Status)
	assertDense(t, s)
}

func TestCreateDefaultsAndAppends(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, "first", domain.StatusTodo)
	mustCreate(t, s, "second", domain.StatusTodo)
	mustCreate(t, s, "elsewhere", domain.StatusDone)

	task, err := s.Create(domain.NewTask{Title: "X"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assertx.Equal(t, domain.StatusTodo, task.Status)
	assertx.Equal(t, domain.PriorityMedium, task.Priority)
	assertx.Equal(t, 2, task.Order)
	assertx.Equal(t, int64(1), task.Version)
	if !task.CreatedAt.Equal(task.UpdatedAt) {
		t.Fatalf("expected createdAt == updatedAt, got %v / %v", task.CreatedAt, task.UpdatedAt)
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore()
	cases := map[string]domain.NewTask{
		"empty title":      {Title: ""},
		"blank title":      {Title: "   "},
		"unknown status":   {Title: "x", Status: "blocked"},
		"unknown priority": {Title: "x", Priority: "urgent"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Create(in); !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	assertx.Equal(t, 0, s.Len())
	assertx.Equal(t, uint64(0), s.Revision())
}

func TestDeleteCompactsColumn(t *testing.T) {
	s := newTestStore()
	a := mustCreate(t, s, "A", "")
	b := mustCreate(t, s, "B", "")
	c := mustCreate(t, s, "C", "")

	if err := s.Delete(b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	gotA, _ := s.Get(a.ID)
	gotC, _ := s.Get(c.ID)
	assertx.Equal(t, 0, gotA.Order)
	assertx.Equal(t, 1, gotC.Order)
	if _, err := s.Get(b.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected deleted task to be gone, got %v", err)
	}
	assertDense(t, s)
}

func TestDeleteLeavesNMinusOne(t *testing.T) {
	s := newTestStore()
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, mustCreate(t, s, fmt.Sprintf("task-%d", i), domain.StatusInProgress).ID)
	}
	if err := s.Delete(ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got := columnIDs(s, domain.StatusInProgress)
	assertx.Equal(t, 4, len(got))
	assertDense(t, s)
}

func TestUpdateEmptyTitleIsRejected(t *testing.T) {
	s := newTestStore()
	task := mustCreate(t, s, "keep me", "")
	empty := ""

	_, err := s.Update(task.ID, domain.TaskPatch{Title: &empty})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := s.Get(task.ID)
	assertx.Equal(t, "keep me", got.Title)
	assertx.Equal(t, task.Version, got.Version)
}

func TestMoveClampsPastEnd(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, "d1", domain.StatusDone)
	mustCreate(t, s, "d2", domain.StatusDone)
	task := mustCreate(t, s, "todo", domain.StatusTodo)

	moved, err := s.Move(task.ID, domain.StatusDone, 999)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	assertx.Equal(t, 2, moved.Order)
	assertDense(t, s)
}

func TestMoveWithinColumn(t *testing.T) {
	s := newTestStore()
	a := mustCreate(t, s, "a", "")
	b := mustCreate(t, s, "b", "")
	c := mustCreate(t, s, "c", "")

	if _, err := s.Move(a.ID, domain.StatusTodo, 2); err != nil {
		t.Fatalf("move down: %v", err)
	}
	assertx.EqualSlices(t, []string{b.ID, c.ID, a.ID}, columnIDs(s, domain.StatusTodo))

	if _, err := s.Move(a.ID, domain.StatusTodo, 0); err != nil {
		t.Fatalf("move up: %v", err)
	}
	assertx.EqualSlices(t, []string{a.ID, b.ID, c.ID}, columnIDs(s, domain.StatusTodo))

	if _, err := s.Move(c.ID, domain.StatusTodo, 50); err != nil {
		t.Fatalf("move clamp: %v", err)
	}
	assertx.EqualSlices(t, []string{a.ID, b.ID, c.ID}, columnIDs(s, domain.StatusTodo))
	assertDense(t, s)
}

func TestMoveTwiceMatchesMoveOnce(t *testing.T) {
	s := newTestStore()
	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, mustCreate(t, s, fmt.Sprintf("t-%d", i), "").ID)
	}

	if _, err := s.Move(ids[3], domain.StatusTodo, 1); err != nil {
		t.Fatalf("first move: %v", err)
	}
	once := columnIDs(s, domain.StatusTodo)
	if _, err := s.Move(ids[3], domain.StatusTodo, 1); err != nil {
		t.Fatalf("second move: %v", err)
	}
	assertx.EqualSlices(t, once, columnIDs(s, domain.StatusTodo))
}

func TestIDNeverChanges(t *testing.T) {
	s := newTestStore()
	task := mustCreate(t, s, "stable", "")
	title := "renamed"
	status := domain.StatusDone

	updated, err := s.Update(task.ID, domain.TaskPatch{Title: &title, Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	moved, err := s.Move(task.ID, domain.StatusInProgress, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	assertx.Equal(t, task.ID, updated.ID)
	assertx.Equal(t, task.ID, moved.ID)
	if !moved.CreatedAt.Equal(task.CreatedAt) {
		t.Fatalf("createdAt changed: %v -> %v", task.CreatedAt, moved.CreatedAt)
	}
}

func TestFailedOperationsLeaveStoreUntouched(t *testing.T) {
	s := newTestStore()
	a := mustCreate(t, s, "a", "")
	mustCreate(t, s, "b", domain.StatusDone)

	before := s.Snapshot()
	rev := s.Revision()
	empty := ""
	bogus := domain.Status("archived")
	negative := -1
	stale := int64(42)

	failures := []func() error{
		func() error { _, err := s.Update("missing", domain.TaskPatch{Title: &empty}); return err },
		func() error { _, err := s.Update(a.ID, domain.TaskPatch{Title: &empty}); return err },
		func() error { _, err := s.Update(a.ID, domain.TaskPatch{Status: &bogus}); return err },
		func() error { _, err := s.Update(a.ID, domain.TaskPatch{Order: &negative}); return err },
		func() error { _, err := s.Update(a.ID, domain.TaskPatch{}); return err },
		func() error { _, err := s.Move("missing", domain.StatusDone, 0); return err },
		func() error { _, err := s.Move(a.ID, domain.StatusDone, -1); return err },
		func() error { _, err := s.Move(a.ID, bogus, 0); return err },
		func() error { _, err := s.MoveIfVersion(a.ID, domain.StatusDone, 0, stale); return err },
		func() error { return s.Delete("missing") },
		func() error { return s.Load([]domain.Task{{ID: "x", Title: "x"}, {ID: "x", Title: "y"}}) },
	}
	for i, fn := range failures {
		if err := fn(); err == nil {
			t.Fatalf("operation %d: expected error", i)
		}
		if !reflect.DeepEqual(before, s.Snapshot()) {
			t.Fatalf("operation %d mutated the store", i)
		}
		assertx.Equal(t, rev, s.Revision())
	}
}

func TestErrorKinds(t *testing.T) {
	s := newTestStore()
	task := mustCreate(t, s, "a", "")

	if err := s.Delete("nope"); !domain.IsNotFound(err) {
		t.Fatalf("delete unknown: %v", err)
	}
	if _, err := s.Move("nope", domain.StatusDone, 0); !domain.IsNotFound(err) {
		t.Fatalf("move unknown: %v", err)
	}
	if _, err := s.Move(task.ID, domain.StatusDone, -3); !domain.IsValidation(err) {
		t.Fatalf("move negative: %v", err)
	}
	if _, err := s.Get("nope"); !domain.IsNotFound(err) {
		t.Fatalf("get unknown: %v", err)
	}
}

func TestUpdateStatusChangeAppendsToDestination(t *testing.T) {
	s := newTestStore()
	mustCreate(t, s, "done-1", domain.StatusDone)
	mustCreate(t, s, "done-2", domain.StatusDone)
	a := mustCreate(t, s, "a", "")
	b := mustCreate(t, s, "b", "")
	status := domain.StatusDone

	updated, err := s.Update(a.ID, domain.TaskPatch{Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	assertx.Equal(t, domain.StatusDone, updated.Status)
	assertx.Equal(t, 2, updated.Order)

	gotB, _ := s.Get(b.ID)
	assertx.Equal(t, 0, gotB.Order)
	assertDense(t, s)
}

func TestUpdateWithStatusAndOrder(t *testing.T) {
	s := newTestStore()
	d1 := mustCreate(t, s, "d1", domain.StatusDone)
	a := mustCreate(t, s, "a", "")
	status := domain.StatusDone
	order := 0

	if _, err := s.Update(a.ID, domain.TaskPatch{Status: &status, Order: &order}); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertx.EqualSlices(t, []string{a.ID, d1.ID}, columnIDs(s, domain.StatusDone))
	assertDense(t, s)
}

func TestUpdateOrderOnlyReordersColumn(t *testing.T) {
	s := newTestStore()
	a := mustCreate(t, s, "a", "")
	b := mustCreate(t, s, "b", "")
	order := 0

	if _, err := s.Update(b.ID, domain.TaskPatch{Order: &order}); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertx.EqualSlices(t, []string{b.ID, a.ID}, columnIDs(s, domain.StatusTodo))
}

func TestUpdateFields(t *testing.T) {
	s := newTestStore()
	due := domain.Date{Year: 2025, Month: time.April, Day: 2}
	task, err := s.Create(domain.NewTask{Title: "x", DueDate: &due})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	desc := "details"
	prio := domain.PriorityHigh
	cat := "ops"
	who := "user-7"
	files := []domain.File{{Name: "spec.pdf", URL: "https://files/spec.pdf"}}
	updated, err := s.Update(task.ID, domain.TaskPatch{
		Description:  &desc,
		Priority:     &prio,
		Category:     &cat,
		AssignedTo:   &who,
		Files:        &files,
		ClearDueDate: true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	assertx.Equal(t, desc, updated.Description)
	assertx.Equal(t, prio, updated.Priority)
	assertx.Equal(t, cat, updated.Category)
	assertx.Equal(t, who, updated.AssignedTo)
	assertx.Equal(t, 1, len(updated.Files))
	if updated.DueDate != nil {
		t.Fatalf("expected due date cleared, got %v", updated.DueDate)
	}
	assertx.Equal(t, int64(2), updated.Version)
}

func TestUpdatedAtIsMonotonicWithFrozenClock(t *testing.T) {
	s := newTestStore()
	task := mustCreate(t, s, "x", "")
	prev := task.UpdatedAt
	for i := 0; i < 5; i++ {
		title := fmt.Sprintf("x-%d", i)
		got, err := s.Update(task.ID, domain.TaskPatch{Title: &title})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if !got.UpdatedAt.After(prev) {
			t.Fatalf("updatedAt did not increase: %v -> %v", prev, got.UpdatedAt)
		}
		if got.UpdatedAt.Before(got.CreatedAt) {
			t.Fatalf("updatedAt before createdAt")
		}
		prev = got.UpdatedAt
	}
}

func TestMoveTouchesOnlyMovedTask(t *testing.T) {
	s := newTestStore()
	a := mustCreate(t, s, "a", "")
	b := mustCreate(t, s, "b", "")

	if _, err := s.Move(b.ID, domain.StatusTodo, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	gotA, _ := s.Get(a.ID)
	gotB, _ := s.Get(b.ID)
	assertx.Equal(t, 1, gotA.Order)
	if !gotA.UpdatedAt.Equal(a.UpdatedAt) {
		t.Fatalf("bystander updatedAt changed: %v -> %v", a.UpdatedAt, gotA.UpdatedAt)
	}
	assertx.Equal(t, a.Version, gotA.Version)
	if !gotB.UpdatedAt.After(b.UpdatedAt) {
		t.Fatalf("moved task updatedAt not refreshed")
	}
}

func TestVersionPreconditions(t *testing.T) {
	s := newTestStore()
	task := mustCreate(t, s, "x", "")
	title := "y"

	if _, err := s.Update(task.ID, domain.TaskPatch{Title: &title, IfVersion: &task.Version}); err != nil {
		t.Fatalf("update with current version: %v", err)
	}
	_, err := s.Update(task.ID, domain.TaskPatch{Title: &title, IfVersion: &task.Version})
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := s.MoveIfVersion(task.ID, domain.StatusDone, 0, task.Version); !domain.IsConflict(err) {
		t.Fatalf("expected conflict on move, got %v", err)
	}
	if _, err := s.MoveIfVersion(task.ID, domain.StatusDone, 0, task.Version+1); err != nil {
		t.Fatalf("move with current version: %v", err)
	}
}

func TestReturnedTasksAreCopies(t *testing.T) {
	s := newTestStore()
	created, err := s.Create(domain.NewTask{Title: "x", Files: []domain.File{{Name: "a"}}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	created.Files[0].Name = "mutated"
	created.Title = "mutated"

	got, _ := s.Get(created.ID)
	assertx.Equal(t, "a", got.Files[0].Name)
	assertx.Equal(t, "x", got.Title)

	for task := range s.ByStatus(domain.StatusTodo) {
		task.Order = 99
	}
	assertDense(t, s)
}

func TestByStatusReadsCurrentState(t *testing.T) {
	s := newTestStore()
	seq := s.ByStatus(domain.StatusTodo)
	mustCreate(t, s, "late", "")

	count := 0
	for range seq {
		count++
	}
	assertx.Equal(t, 1, count)

	mustCreate(t, s, "later", "")
	seen := 0
	for range seq {
		seen++
		break
	}
	assertx.Equal(t, 1, seen)
	assertx.Equal(t, 2, len(columnIDs(s, domain.StatusTodo)))
}

func TestObserversReceiveCommittedChanges(t *testing.T) {
	var events []domain.ChangeEvent
	s := newTestStore(WithObserver(func(ev domain.ChangeEvent) { events = append(events, ev) }))

	task := mustCreate(t, s, "x", "")
	if _, err := s.Move(task.ID, domain.StatusDone, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	empty := ""
	_, _ = s.Update(task.ID, domain.TaskPatch{Title: &empty})
	if err := s.Delete(task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var types []string
	for i, ev := range events {
		types = append(types, ev.Type)
		assertx.Equal(t, uint64(i+1), ev.Revision)
		assertx.Equal(t, task.ID, ev.TaskID)
	}
	assertx.EqualSlices(t, []string{domain.TaskCreated, domain.TaskMoved, domain.TaskDeleted}, types)
	if events[1].Task == nil || events[1].Task.Status != domain.StatusDone {
		t.Fatalf("unexpected move event payload: %#v", events[1].Task)
	}
}

func TestSubscribeObserverCanReadStore(t *testing.T) {
	s := newTestStore()
	var sizes []int
	s.Subscribe(func(domain.ChangeEvent) { sizes = append(sizes, s.Len()) })

	mustCreate(t, s, "a", "")
	mustCreate(t, s, "b", "")
	assertx.EqualSlices(t, []int{1, 2}, sizes)
}

func TestLoadNormalisesOrders(t *testing.T) {
	s := newTestStore()
	early := fixedNow.Add(-time.Hour)
	err := s.Load([]domain.Task{
		{ID: "c", Title: "c", Status: domain.StatusTodo, Order: 7, CreatedAt: early},
		{ID: "a", Title: "a", Status: domain.StatusTodo, Order: 2, CreatedAt: early},
		{ID: "b", Title: "b", Status: domain.StatusTodo, Order: 2, CreatedAt: early.Add(time.Minute)},
		{ID: "d", Title: "d", Status: domain.StatusDone, Order: 0},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertx.EqualSlices(t, []string{"a", "b", "c"}, columnIDs(s, domain.StatusTodo))
	assertDense(t, s)

	d, _ := s.Get("d")
	assertx.Equal(t, domain.PriorityMedium, d.Priority)
	assertx.Equal(t, int64(1), d.Version)

	// ids from persistence stay reserved for the lifetime of the store
	task := mustCreate(t, s, "new", "")
	if task.ID == "a" || task.ID == "b" || task.ID == "c" || task.ID == "d" {
		t.Fatalf("reused id %s", task.ID)
	}
}

func TestLoadRejectsInvalidTasks(t *testing.T) {
	cases := map[string][]domain.Task{
		"missing id":     {{Title: "x"}},
		"duplicate id":   {{ID: "a", Title: "x"}, {ID: "a", Title: "y"}},
		"empty title":    {{ID: "a"}},
		"unknown status": {{ID: "a", Title: "x", Status: "later"}},
	}
	for name, tasks := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestStore()
			if err := s.Load(tasks); !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			assertx.Equal(t, 0, s.Len())
		})
	}
}

func TestCreateRetriesOnIDCollision(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	i := 0
	s := New(WithIDGenerator(func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}))
	first := mustCreate(t, s, "one", "")
	second := mustCreate(t, s, "two", "")
	assertx.Equal(t, "dup", first.ID)
	assertx.Equal(t, "fresh", second.ID)
}

func TestCreateFailsWhenIDsExhausted(t *testing.T) {
	s := New(WithIDGenerator(func() string { return "same" }))
	mustCreate(t, s, "one", "")
	if _, err := s.Create(domain.NewTask{Title: "two"}); err == nil {
		t.Fatal("expected id allocation failure")
	}
	assertx.Equal(t, 1, s.Len())
	assertDense(t, s)
}

func TestRandomOperationsKeepColumnsDense(t *testing.T) {
	s := newTestStore()
	rng := rand.New(rand.NewPCG(7, 11))
	var ids []string

	pickID := func() string {
		if len(ids) == 0 || rng.IntN(10) == 0 {
			return "missing"
		}
		return ids[rng.IntN(len(ids))]
	}
	pickStatus := func() domain.Status {
		return domain.Statuses[rng.IntN(len(domain.Statuses))]
	}

	for step := 0; step < 1000; step++ {
		switch rng.IntN(5) {
		case 0, 1:
			task, err := s.Create(domain.NewTask{Title: fmt.Sprintf("task-%d", step), Status: pickStatus()})
			if err != nil {
				t.Fatalf("step %d create: %v", step, err)
			}
			ids = append(ids, task.ID)
		case 2:
			_, _ = s.Move(pickID(), pickStatus(), rng.IntN(12)-1)
		case 3:
			status := pickStatus()
			order := rng.IntN(8)
			patch := domain.TaskPatch{Status: &status}
			if rng.IntN(2) == 0 {
				patch.Order = &order
			}
			_, _ = s.Update(pickID(), patch)
		case 4:
			id := pickID()
			if err := s.Delete(id); err == nil {
				for i, v := range ids {
					if v == id {
						ids = append(ids[:i], ids[i+1:]...)
						break
					}
				}
			}
		}
		if err := s.Check(); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}
	assertx.Equal(t, len(ids), s.Len())
	assertDense(t, s)
}

func TestConcurrentOperationsAreSerialised(t *testing.T) {
	s := New()
	var ids []string
	for i := 0; i < 20; i++ {
		ids = append(ids, mustCreate(t, s, fmt.Sprintf("seed-%d", i), "").ID)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(w), 99))
			for i := 0; i < 200; i++ {
				id := ids[rng.IntN(len(ids))]
				status := domain.Statuses[rng.IntN(len(domain.Statuses))]
				if _, err := s.Move(id, status, rng.IntN(25)); err != nil {
					t.Errorf("move: %v", err)
					return
				}
				if i%20 == 0 {
					if _, err := s.Create(domain.NewTask{Title: "extra"}); err != nil {
						t.Errorf("create: %v", err)
						return
					}
				}
				_ = s.Snapshot()
			}
		}(w)
	}
	wg.Wait()

	assertx.Equal(t, 20+8*10, s.Len())
	assertDense(t, s)
}
