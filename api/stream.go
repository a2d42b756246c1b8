package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/Manideep9308/task-flow-sub000/domain"
	"github.com/Manideep9308/task-flow-sub000/projection"
)

// Broker fans board changes out to Server-Sent Event subscribers. Each
// subscriber holds at most one pending wake-up; a burst of changes results
// in one fresh board being sent.
type Broker struct {
	heartbeat time.Duration

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewBroker creates a broker. A positive heartbeat sends an SSE comment at
// that interval to keep idle connections open through proxies.
func NewBroker(heartbeat time.Duration) *Broker {
	return &Broker{heartbeat: heartbeat, subs: make(map[chan struct{}]struct{})}
}

func (b *Broker) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) unsubscribe(ch chan struct{}) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Subscribers is the number of connected streams.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Notify wakes every subscriber. It never blocks and has the board.Observer
// signature.
func (b *Broker) Notify(domain.ChangeEvent) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

type boardMessage struct {
	Revision uint64              `json:"revision"`
	Columns  []projection.Column `json:"columns"`
}

func streamBoard(b Board, broker *Broker, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "stream unsupported"})
		}
		c.Response().WriteHeader(http.StatusOK)

		ctx := c.Request().Context()
		ch := broker.subscribe()
		defer broker.unsubscribe(ch)

		var tick <-chan time.Time
		if broker.heartbeat > 0 {
			ticker := time.NewTicker(broker.heartbeat)
			defer ticker.Stop()
			tick = ticker.C
		}

		send := true
		for {
			if send {
				msg := boardMessage{Revision: b.Revision(), Columns: projection.Board(b)}
				data, err := sonic.ConfigStd.Marshal(msg)
				if err != nil {
					logger.Errorf("stream encode failed: %v", err)
					return err
				}
				if err := writeEvent(c.Response(), "board", data); err != nil {
					logger.Debugf("stream closed: %v", err)
					return nil
				}
				flusher.Flush()
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ch:
				send = true
			case <-tick:
				if _, err := c.Response().Write([]byte(": ping\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
				send = false
			}
		}
	}
}

func writeEvent(w *echo.Response, name string, data []byte) error {
	if _, err := w.Write([]byte("event: " + name + "\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}
