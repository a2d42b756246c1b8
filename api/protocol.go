package api

import (
	"github.com/Manideep9308/task-flow-sub000/domain"
)

const maxBodySize = 64 * 1024 // 64 KiB

// POST /tasks request body
type createTaskRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Priority    string        `json:"priority"`
	DueDate     string        `json:"dueDate"`
	Category    string        `json:"category"`
	AssignedTo  string        `json:"assignedTo"`
	Files       []domain.File `json:"files"`
}

// PUT /tasks/:id request body. Absent fields are left untouched; an empty
// dueDate clears it.
type updateTaskRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	Priority    *string        `json:"priority"`
	DueDate     *string        `json:"dueDate"`
	Category    *string        `json:"category"`
	AssignedTo  *string        `json:"assignedTo"`
	Files       *[]domain.File `json:"files"`
	Order       *int           `json:"order"`
}

// POST /tasks/:id/move request body
type moveTaskRequest struct {
	Status string `json:"status"`
	Order  *int   `json:"order"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Tasks    int    `json:"tasks"`
	Revision uint64 `json:"revision"`
}

func (r createTaskRequest) toNewTask() (domain.NewTask, error) {
	in := domain.NewTask{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		AssignedTo:  r.AssignedTo,
		Files:       r.Files,
	}
	var err error
	if r.Status != "" {
		if in.Status, err = domain.ParseStatus(r.Status); err != nil {
			return domain.NewTask{}, err
		}
	}
	if r.Priority != "" {
		if in.Priority, err = domain.ParsePriority(r.Priority); err != nil {
			return domain.NewTask{}, err
		}
	}
	if r.DueDate != "" {
		d, err := domain.ParseDate(r.DueDate)
		if err != nil {
			return domain.NewTask{}, err
		}
		in.DueDate = &d
	}
	return in, nil
}

func (r updateTaskRequest) toPatch() (domain.TaskPatch, error) {
	p := domain.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		AssignedTo:  r.AssignedTo,
		Files:       r.Files,
		Order:       r.Order,
	}
	if r.Status != nil {
		s, err := domain.ParseStatus(*r.Status)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		p.Status = &s
	}
	if r.Priority != nil {
		pr, err := domain.ParsePriority(*r.Priority)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		p.Priority = &pr
	}
	if r.DueDate != nil {
		if *r.DueDate == "" {
			p.ClearDueDate = true
		} else {
			d, err := domain.ParseDate(*r.DueDate)
			if err != nil {
				return domain.TaskPatch{}, err
			}
			p.DueDate = &d
		}
	}
	return p, nil
}
