package storage

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Manideep9308/task-flow-sub000/domain"
)

// Source hands out a consistent copy of the board. *board.Store satisfies it.
type Source interface {
	Snapshot() []domain.Task
}

// PersisterOptions tunes the background writer.
type PersisterOptions struct {
	// SaveTimeout bounds a single Save call.
	SaveTimeout time.Duration
	// RetryDelay is the first back-off after a failed save; it doubles up to
	// MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func (o PersisterOptions) withDefaults() PersisterOptions {
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = 30 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.MaxRetryDelay < o.RetryDelay {
		o.MaxRetryDelay = 30 * time.Second
	}
	return o
}

// Persister writes the full board to a Snapshotter after every committed
// change. Bursts of changes collapse into one write of the latest state.
type Persister struct {
	src  Source
	dst  Snapshotter
	log  *log.Logger
	opts PersisterOptions

	// saveMu orders snapshot-and-save pairs so an older state never
	// overwrites a newer one.
	saveMu sync.Mutex
	dirty  chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPersister starts the background writer.
func NewPersister(src Source, dst Snapshotter, logger *log.Logger, opts PersisterOptions) *Persister {
	if logger == nil {
		panic("Logger is not initialized")
	}
	p := &Persister{
		src:   src,
		dst:   dst,
		log:   logger,
		opts:  opts.withDefaults(),
		dirty: make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Notify marks the board dirty. It never blocks and has the board.Observer
// signature.
func (p *Persister) Notify(domain.ChangeEvent) {
	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

func (p *Persister) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case <-p.dirty:
			p.saveWithRetry()
		}
	}
}

func (p *Persister) saveWithRetry() {
	delay := p.opts.RetryDelay
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.SaveTimeout)
		err := p.save(ctx)
		cancel()
		if err == nil {
			return
		}
		p.log.WithFields(log.Fields{"attempt": attempt, "retry_in": delay}).Warnf("snapshot save failed: %v", err)

		timer := time.NewTimer(delay)
		select {
		case <-p.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		delay *= 2
		if delay > p.opts.MaxRetryDelay {
			delay = p.opts.MaxRetryDelay
		}
	}
}

func (p *Persister) save(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	start := time.Now()
	tasks := p.src.Snapshot()
	if err := p.dst.Save(ctx, tasks); err != nil {
		return err
	}
	p.log.WithFields(log.Fields{"tasks": len(tasks), "duration_ms": time.Since(start).Milliseconds()}).Debug("snapshot saved")
	return nil
}

// Flush writes the current board synchronously.
func (p *Persister) Flush(ctx context.Context) error {
	return p.save(ctx)
}

// Close stops the background writer and writes the final state.
func (p *Persister) Close(ctx context.Context) error {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
	return p.Flush(ctx)
}
