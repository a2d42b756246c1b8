package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

type fakeQueue struct {
	mu       sync.Mutex
	inFlight int
	max      int
	messages []string
	fail     bool
	release  chan struct{}
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{}
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.max {
		f.max = f.inFlight
	}
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.fail {
		return azqueue.EnqueueMessagesResponse{}, errors.New("enqueue failure")
	}
	f.messages = append(f.messages, content)
	return azqueue.EnqueueMessagesResponse{}, nil
}

func (f *fakeQueue) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func TestPublisherDeliversEveryEvent(t *testing.T) {
	fq := newFakeQueue()
	logger, _ := test.NewNullLogger()
	p := NewPublisher(fq, logger, PublisherOptions{Workers: 3, Buffer: 8, HandoffTimeout: 10 * time.Millisecond})

	for i := 0; i < 20; i++ {
		p.Notify(domain.ChangeEvent{Type: domain.TaskMoved, TaskID: "t1", Revision: uint64(i + 1)})
	}
	p.Close()

	msgs := fq.sent()
	if len(msgs) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], `"type":"task-moved"`) || !strings.Contains(msgs[0], `"taskId":"t1"`) {
		t.Fatalf("unexpected message body: %s", msgs[0])
	}
}

func TestPublisherPublishesInlineWhenSaturated(t *testing.T) {
	fq := newFakeQueue()
	fq.release = make(chan struct{})
	logger, _ := test.NewNullLogger()
	p := NewPublisher(fq, logger, PublisherOptions{Workers: 1, Buffer: 0, Timeout: 20 * time.Millisecond})

	// the single worker picks this up and blocks until the timeout
	p.Notify(domain.ChangeEvent{Type: domain.TaskCreated})
	time.Sleep(5 * time.Millisecond)

	start := time.Now()
	p.Notify(domain.ChangeEvent{Type: domain.TaskDeleted})
	if time.Since(start) > time.Second {
		t.Fatal("inline publish did not honour its timeout")
	}
	close(fq.release)
	p.Close()
}

func TestPublisherLogsFailures(t *testing.T) {
	fq := newFakeQueue()
	fq.fail = true
	logger, hook := test.NewNullLogger()
	p := NewPublisher(fq, logger, PublisherOptions{Workers: 1, Buffer: 1})

	p.Notify(domain.ChangeEvent{Type: domain.TaskUpdated, TaskID: "t2"})
	p.Close()

	entry := hook.LastEntry()
	if entry == nil || !strings.Contains(entry.Message, "publish failed") {
		t.Fatalf("expected publish failure log, got %#v", entry)
	}
}

func TestPublisherNotifyAfterClosePublishesInline(t *testing.T) {
	fq := newFakeQueue()
	logger, _ := test.NewNullLogger()
	p := NewPublisher(fq, logger, PublisherOptions{Workers: 1})
	p.Close()

	p.Notify(domain.ChangeEvent{Type: domain.TaskCreated})
	if len(fq.sent()) != 1 {
		t.Fatalf("expected inline publish after close, got %d messages", len(fq.sent()))
	}
}

func TestTrySendHelpers(t *testing.T) {
	ch := make(chan int, 1)
	if ok, closed := trySendNonBlocking(ch, 1); !ok || closed {
		t.Fatalf("expected send to succeed, ok=%v closed=%v", ok, closed)
	}
	if ok, _ := trySendNonBlocking(ch, 2); ok {
		t.Fatal("expected full channel to reject")
	}
	timer := time.NewTimer(5 * time.Millisecond)
	defer timer.Stop()
	if ok, _ := sendWithTimer(ch, 3, timer.C); ok {
		t.Fatal("expected timer to fire first")
	}
	<-ch
	close(ch)
	if _, closed := trySendNonBlocking(ch, 4); !closed {
		t.Fatal("expected closed channel to be reported")
	}
}
