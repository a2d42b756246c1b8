// Package storage persists full board snapshots and publishes change events.
// Nothing here is consulted on the request path: the board keeps the
// authoritative copy in memory and storage only loads it at start-up and
// writes it back after mutations.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

// Snapshotter loads and saves the complete task collection.
type Snapshotter interface {
	Load(ctx context.Context) ([]domain.Task, error)
	Save(ctx context.Context, tasks []domain.Task) error
}

// snapshotVersion is bumped whenever the document layout changes.
const snapshotVersion = 1

type document struct {
	Version int           `json:"version"`
	SavedAt time.Time     `json:"savedAt"`
	Tasks   []domain.Task `json:"tasks"`
}

func encodeSnapshot(tasks []domain.Task, now time.Time) ([]byte, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return sonic.ConfigStd.MarshalIndent(document{Version: snapshotVersion, SavedAt: now.UTC(), Tasks: tasks}, "", "  ")
}

func decodeSnapshot(data []byte) ([]domain.Task, error) {
	var doc document
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version > snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", doc.Version, snapshotVersion)
	}
	return doc.Tasks, nil
}

var retryStatusCodes = []int{408, 429, 500, 502, 503, 504}

// NewTableClient opens the task table named table.
func NewTableClient(connStr, table string) (*aztables.Client, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return svc.NewClient(table), nil
}

// NewQueueClient opens the change event queue named queue.
func NewQueueClient(connStr, queue string) (*azqueue.QueueClient, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	return azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
}
