package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// PublisherOptions sizes the publishing worker pool.
type PublisherOptions struct {
	Workers int
	Buffer  int
	// Timeout bounds one EnqueueMessage call.
	Timeout time.Duration
	// HandoffTimeout is how long Notify waits for buffer space before
	// publishing on the caller's goroutine.
	HandoffTimeout time.Duration
}

func (o PublisherOptions) withDefaults() PublisherOptions {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Buffer < 0 {
		o.Buffer = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	return o
}

// Publisher forwards board change events to an Azure storage queue.
type Publisher struct {
	queue   queueClient
	log     *log.Logger
	timeout time.Duration
	handoff time.Duration

	jobs chan domain.ChangeEvent
	wg   sync.WaitGroup
	once sync.Once
}

// NewPublisher starts the worker pool.
func NewPublisher(queue queueClient, logger *log.Logger, opts PublisherOptions) *Publisher {
	if logger == nil {
		panic("Logger is not initialized")
	}
	opts = opts.withDefaults()
	p := &Publisher{
		queue:   queue,
		log:     logger,
		timeout: opts.Timeout,
		handoff: opts.HandoffTimeout,
		jobs:    make(chan domain.ChangeEvent, opts.Buffer),
	}
	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Infof("change publisher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", opts.Workers, opts.Buffer, opts.Timeout, opts.HandoffTimeout)
	return p
}

func (p *Publisher) worker(id int) {
	defer p.wg.Done()
	for ev := range p.jobs {
		if err := p.publish(ev); err != nil {
			p.log.Errorf("publish failed, err: %v, event: %s, task: %s, worker: %d", err, ev.Type, ev.TaskID, id)
		}
	}
}

func (p *Publisher) publish(ev domain.ChangeEvent) error {
	data, err := sonic.ConfigStd.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	_, err = p.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// Notify queues ev for publishing. When the pool is saturated past the
// hand-off timeout, or already closed, the event is published inline.
func (p *Publisher) Notify(ev domain.ChangeEvent) {
	if p.tryEnqueue(ev) {
		return
	}
	if err := p.publish(ev); err != nil {
		p.log.Errorf("inline publish failed, err: %v, event: %s, task: %s", err, ev.Type, ev.TaskID)
	}
}

func (p *Publisher) tryEnqueue(ev domain.ChangeEvent) bool {
	if ok, closed := trySendNonBlocking(p.jobs, ev); closed {
		return false
	} else if ok {
		return true
	}
	if p.handoff <= 0 {
		return false
	}
	timer := time.NewTimer(p.handoff)
	defer timer.Stop()
	ok, closed := sendWithTimer(p.jobs, ev, timer.C)
	if closed {
		return false
	}
	return ok
}

// Close drains the queue and waits for the workers.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.jobs) })
	p.wg.Wait()
}

func trySendNonBlocking[T any](ch chan T, v T) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- v:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer[T any](ch chan T, v T, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- v:
		return true, false
	case <-timer:
		return false, false
	}
}
