package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

// maxBatch is the Table service limit for one entity group transaction.
const maxBatch = 100

// TableStore keeps one entity per task in a single partition of an Azure
// table. Save upserts every current task and deletes rows that disappeared.
type TableStore struct {
	table     *aztables.Client
	partition string
}

// NewTableStore stores the board under partition of table.
func NewTableStore(table *aztables.Client, partition string) *TableStore {
	if table == nil {
		panic("storage.NewTableStore: table client is nil")
	}
	if partition == "" {
		partition = "board"
	}
	return &TableStore{table: table, partition: partition}
}

type taskEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Status      string `json:"Status"`
	Priority    string `json:"Priority"`
	DueDate     string `json:"DueDate"`
	Category    string `json:"Category"`
	AssignedTo  string `json:"AssignedTo"`
	Order       int    `json:"Order"`
	Version     int64  `json:"Version"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
	// Files is the JSON encoded attachment list; tables have no array type.
	Files string `json:"Files"`
}

func encodeTaskEntity(partition string, t domain.Task) ([]byte, error) {
	ent := taskEntity{
		Entity:      aztables.Entity{PartitionKey: partition, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Category:    t.Category,
		AssignedTo:  t.AssignedTo,
		Order:       t.Order,
		Version:     t.Version,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.DueDate != nil {
		ent.DueDate = t.DueDate.String()
	}
	if len(t.Files) > 0 {
		files, err := sonic.ConfigStd.Marshal(t.Files)
		if err != nil {
			return nil, err
		}
		ent.Files = string(files)
	}
	return sonic.ConfigStd.Marshal(ent)
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.ConfigStd.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Status:      domain.Status(ent.Status),
		Priority:    domain.Priority(ent.Priority),
		Category:    ent.Category,
		AssignedTo:  ent.AssignedTo,
		Order:       ent.Order,
		Version:     ent.Version,
	}
	if ent.DueDate != "" {
		d, err := domain.ParseDate(ent.DueDate)
		if err != nil {
			return domain.Task{}, fmt.Errorf("task %s: %w", ent.RowKey, err)
		}
		t.DueDate = &d
	}
	var err error
	if t.CreatedAt, err = parseTimestamp(ent.CreatedAt); err != nil {
		return domain.Task{}, fmt.Errorf("task %s createdAt: %w", ent.RowKey, err)
	}
	if t.UpdatedAt, err = parseTimestamp(ent.UpdatedAt); err != nil {
		return domain.Task{}, fmt.Errorf("task %s updatedAt: %w", ent.RowKey, err)
	}
	if ent.Files != "" {
		if err := sonic.ConfigStd.UnmarshalFromString(ent.Files, &t.Files); err != nil {
			return domain.Task{}, fmt.Errorf("task %s files: %w", ent.RowKey, err)
		}
	}
	return t, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func (s *TableStore) Load(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + s.partition + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (s *TableStore) Save(ctx context.Context, tasks []domain.Task) error {
	existing, err := s.rowKeys(ctx)
	if err != nil {
		return err
	}
	actions, err := planActions(s.partition, existing, tasks)
	if err != nil {
		return err
	}
	for _, batch := range batches(actions, maxBatch) {
		if _, err := s.table.SubmitTransaction(ctx, batch, nil); err != nil {
			return fmt.Errorf("submit transaction: %w", err)
		}
	}
	return nil
}

func (s *TableStore) rowKeys(ctx context.Context) ([]string, error) {
	filter := "PartitionKey eq '" + s.partition + "'"
	sel := "RowKey"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Select: &sel})
	var keys []string
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent aztables.Entity
			if err := sonic.ConfigStd.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			keys = append(keys, ent.RowKey)
		}
	}
	return keys, nil
}

// planActions upserts every task and deletes the rows in existing that no
// task refers to any more.
func planActions(partition string, existing []string, tasks []domain.Task) ([]aztables.TransactionAction, error) {
	current := make(map[string]struct{}, len(tasks))
	actions := make([]aztables.TransactionAction, 0, len(tasks))
	for _, t := range tasks {
		current[t.ID] = struct{}{}
		data, err := encodeTaskEntity(partition, t)
		if err != nil {
			return nil, err
		}
		actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeInsertReplace, Entity: data})
	}
	for _, key := range existing {
		if _, ok := current[key]; ok {
			continue
		}
		data, err := sonic.ConfigStd.Marshal(aztables.Entity{PartitionKey: partition, RowKey: key})
		if err != nil {
			return nil, err
		}
		actions = append(actions, aztables.TransactionAction{ActionType: aztables.TransactionTypeDelete, Entity: data})
	}
	return actions, nil
}

func batches[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
