package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Manideep9308/task-flow-sub000/domain"
	"github.com/Manideep9308/task-flow-sub000/internal/assertx"
)

const seedYAML = `
tasks:
  - id: s1
    title: Design landing page
    status: InProgress
    priority: HIGH
    dueDate: 2025-07-01
    category: design
    files:
      - name: mock.png
        url: https://files/mock.png
        size: 2048
  - title: Write tests
`

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	tasks, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	assertx.Equal(t, 2, len(tasks))

	first := tasks[0]
	assertx.Equal(t, "s1", first.ID)
	assertx.Equal(t, domain.StatusInProgress, first.Status)
	assertx.Equal(t, domain.PriorityHigh, first.Priority)
	assertx.Equal(t, "2025-07-01", first.DueDate.String())
	assertx.Equal(t, 1, len(first.Files))
	assertx.Equal(t, int64(2048), first.Files[0].Size)

	second := tasks[1]
	if second.ID == "" {
		t.Fatal("expected generated id")
	}
	assertx.Equal(t, domain.Status(""), second.Status)
	if second.DueDate != nil {
		t.Fatalf("unexpected due date %v", second.DueDate)
	}
}

func TestParseSeedErrors(t *testing.T) {
	cases := map[string]string{
		"bad status":   "tasks:\n  - title: x\n    status: later\n",
		"bad priority": "tasks:\n  - title: x\n    priority: urgent\n",
		"bad date":     "tasks:\n  - title: x\n    dueDate: tomorrow\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseSeed([]byte(doc)); !domain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if _, err := ParseSeed([]byte("tasks: [")); err == nil {
		t.Fatal("expected yaml error")
	}
}
