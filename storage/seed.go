package storage

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

type seedFile struct {
	Tasks []seedTask `yaml:"tasks"`
}

type seedTask struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Status      string        `yaml:"status"`
	Priority    string        `yaml:"priority"`
	DueDate     string        `yaml:"dueDate"`
	Category    string        `yaml:"category"`
	AssignedTo  string        `yaml:"assignedTo"`
	Order       int           `yaml:"order"`
	Files       []domain.File `yaml:"files"`
}

// LoadSeed reads the initial task set from a YAML file. Enum values are
// parsed leniently (case and surrounding space are ignored); orders are kept
// as written and normalised when the board loads them. Tasks without an id
// get a fresh one.
func LoadSeed(path string) ([]domain.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML.
func ParseSeed(data []byte) ([]domain.Task, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	tasks := make([]domain.Task, 0, len(f.Tasks))
	for i, st := range f.Tasks {
		t := domain.Task{
			ID:          st.ID,
			Title:       st.Title,
			Description: st.Description,
			Category:    st.Category,
			AssignedTo:  st.AssignedTo,
			Order:       st.Order,
			Files:       st.Files,
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if st.Status != "" {
			s, err := domain.ParseStatus(st.Status)
			if err != nil {
				return nil, fmt.Errorf("seed task %d: %w", i, err)
			}
			t.Status = s
		}
		if st.Priority != "" {
			p, err := domain.ParsePriority(st.Priority)
			if err != nil {
				return nil, fmt.Errorf("seed task %d: %w", i, err)
			}
			t.Priority = p
		}
		if st.DueDate != "" {
			d, err := domain.ParseDate(st.DueDate)
			if err != nil {
				return nil, fmt.Errorf("seed task %d: %w", i, err)
			}
			t.DueDate = &d
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
