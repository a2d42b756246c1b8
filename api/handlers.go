package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/Manideep9308/task-flow-sub000/domain"
	"github.com/Manideep9308/task-flow-sub000/projection"
)

const (
	headerIfMatch         = "If-Match"
	headerETag            = "ETag"
	headerIdempotencyKey  = "Idempotency-Key"
	headerIdempotentReply = "Idempotent-Replayed"
	userKey               = "user"
	anonymousScope        = "anonymous"
)

type handlers struct {
	board   Board
	auth    Authenticator
	deduper Deduper
	log     *log.Logger
}

// Register wires up all API routes on the provided Echo instance. auth and
// deduper are optional; without auth every request is anonymous and without
// a deduper Idempotency-Key headers are ignored.
func Register(e *echo.Echo, b Board, auth Authenticator, deduper Deduper, broker *Broker, logger *log.Logger) {
	if logger == nil {
		panic("Logger is not initialized")
	}
	if broker == nil {
		broker = NewBroker(0)
	}
	e.JSONSerializer = SonicSerializer{}
	b.Subscribe(broker.Notify)

	h := &handlers{board: b, auth: auth, deduper: deduper, log: logger}
	e.GET("/healthz", healthz(b))
	e.GET("/tasks", h.wrap("/tasks", h.listTasks))
	e.POST("/tasks", h.wrap("/tasks", h.createTask))
	e.GET("/tasks/:id", h.wrap("/tasks/:id", h.getTask))
	e.PUT("/tasks/:id", h.wrap("/tasks/:id", h.updateTask))
	e.PATCH("/tasks/:id", h.wrap("/tasks/:id", h.updateTask))
	e.DELETE("/tasks/:id", h.wrap("/tasks/:id", h.deleteTask))
	e.POST("/tasks/:id/move", h.wrap("/tasks/:id/move", h.moveTask))
	e.GET("/board", h.wrap("/board", h.getBoard))
	e.GET("/calendar", h.wrap("/calendar", h.getCalendar))
	stream := streamBoard(b, broker, logger)
	e.GET("/stream", h.wrap("/stream", func(c echo.Context, _ *requestMetrics) error { return stream(c) }))
}

type handlerFunc func(c echo.Context, m *requestMetrics) error

// wrap starts request metrics, authenticates the caller and runs fn.
func (h *handlers) wrap(route string, fn handlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		m, ctx := newRequestMetrics(c.Request().Context(), h.log, route, c.Request().Method)
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			m.Log(c.Response().Status, err)
		}()

		if h.auth != nil {
			authStart := time.Now()
			userID, authErr := h.auth.UserIDFromAuthHeader(authHeader(c))
			m.ObserveAuth(time.Since(authStart))
			if authErr != nil {
				m.SetFailure("auth", authErr)
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: authErr.Error()})
			}
			m.SetUser(userID)
			c.Set(userKey, userID)
		}
		return fn(c, m)
	}
}

// authHeader falls back to a token query parameter for EventSource clients,
// which cannot set headers.
func authHeader(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if token := c.QueryParam("token"); h == "" && token != "" {
		h = "Bearer " + token
	}
	return h
}

func userScope(c echo.Context) string {
	if id, ok := c.Get(userKey).(string); ok && id != "" {
		return id
	}
	return anonymousScope
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c echo.Context, m *requestMetrics, stage string, err error) error {
	status := statusFor(err)
	m.SetFailure(stage, err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithFields(log.Fields{"stage": stage, "path": c.Path()}).Errorf("request failed: %v", err)
		msg = "internal error"
	}
	return c.JSON(status, errorResponse{Error: msg})
}

func (h *handlers) writeTask(c echo.Context, m *requestMetrics, status int, t domain.Task) error {
	m.SetTaskID(t.ID)
	c.Response().Header().Set(headerETag, etag(t.Version))
	encodeStart := time.Now()
	err := c.JSON(status, t)
	m.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		m.SetErrorStage("encode_response")
	}
	return err
}

func (h *handlers) writeJSON(c echo.Context, m *requestMetrics, v any) error {
	encodeStart := time.Now()
	err := c.JSON(http.StatusOK, v)
	m.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		m.SetErrorStage("encode_response")
	}
	return err
}

func healthz(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{Status: "ok", Tasks: b.Len(), Revision: b.Revision()})
	}
}

func (h *handlers) listTasks(c echo.Context, m *requestMetrics) error {
	q, s, err := parseListQuery(c)
	if err != nil {
		return h.fail(c, m, "query", err)
	}
	storeStart := time.Now()
	tasks := []domain.Task{}
	for t := range projection.Filter(h.board, q, s) {
		tasks = append(tasks, t)
	}
	m.ObserveStore(time.Since(storeStart))
	m.SetTasksReturned(len(tasks))
	return h.writeJSON(c, m, tasks)
}

func parseListQuery(c echo.Context) (projection.Query, projection.Sort, error) {
	q := projection.Query{Text: c.QueryParam("q")}
	for _, raw := range splitParams(c.QueryParams()["status"]) {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			return q, projection.Sort{}, err
		}
		q.Statuses = append(q.Statuses, st)
	}
	for _, raw := range splitParams(c.QueryParams()["priority"]) {
		p, err := domain.ParsePriority(raw)
		if err != nil {
			return q, projection.Sort{}, err
		}
		q.Priorities = append(q.Priorities, p)
	}
	key, err := projection.ParseSortKey(c.QueryParam("sort"))
	if err != nil {
		return q, projection.Sort{}, err
	}
	s := projection.Sort{Key: key}
	switch strings.ToLower(c.QueryParam("order")) {
	case "", "asc":
	case "desc":
		s.Desc = true
	default:
		return q, s, domain.Invalid("order", "expected asc or desc, got %q", c.QueryParam("order"))
	}
	return q, s, nil
}

// splitParams flattens repeated and comma separated query values.
func splitParams(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (h *handlers) getTask(c echo.Context, m *requestMetrics) error {
	storeStart := time.Now()
	t, err := h.board.Get(c.Param("id"))
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		return h.fail(c, m, "store", err)
	}
	return h.writeTask(c, m, http.StatusOK, t)
}

func (h *handlers) createTask(c echo.Context, m *requestMetrics) error {
	var req createTaskRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, m, "decode", domain.Invalid("body", "invalid JSON: %v", err))
	}
	in, err := req.toNewTask()
	if err != nil {
		return h.fail(c, m, "validate", err)
	}

	ctx := c.Request().Context()
	scope := userScope(c)
	key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
	if key != "" && h.deduper != nil {
		added, derr := h.deduper.Add(ctx, scope, key)
		switch {
		case derr != nil:
			h.log.Warnf("idempotency reservation failed, err: %v, key: %s", derr, key)
			key = ""
		case !added:
			return h.replay(c, m, scope, key)
		}
	} else {
		key = ""
	}

	storeStart := time.Now()
	t, err := h.board.Create(in)
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		if key != "" {
			if rerr := h.deduper.Remove(context.WithoutCancel(ctx), scope, key); rerr != nil {
				h.log.Errorf("dedupe rollback failed, err: %v, key: %s, scope: %s", rerr, key, scope)
			}
		}
		return h.fail(c, m, "store", err)
	}
	if key != "" {
		if cerr := h.deduper.Complete(context.WithoutCancel(ctx), scope, key, t.ID); cerr != nil {
			h.log.Errorf("dedupe completion failed, err: %v, key: %s, task: %s", cerr, key, t.ID)
		}
	}
	return h.writeTask(c, m, http.StatusCreated, t)
}

// replay answers a create whose Idempotency-Key was seen before with the
// task the first request created.
func (h *handlers) replay(c echo.Context, m *requestMetrics, scope, key string) error {
	m.SetReplayed()
	id, err := h.deduper.Lookup(c.Request().Context(), scope, key)
	if err != nil {
		return h.fail(c, m, "idempotency", err)
	}
	if id == "" {
		m.SetErrorStage("idempotency_pending")
		return c.JSON(http.StatusConflict, errorResponse{Error: "a request with this Idempotency-Key is still in progress"})
	}
	t, err := h.board.Get(id)
	if err != nil {
		return h.fail(c, m, "store", err)
	}
	c.Response().Header().Set(headerIdempotentReply, "true")
	return h.writeTask(c, m, http.StatusOK, t)
}

func (h *handlers) updateTask(c echo.Context, m *requestMetrics) error {
	id := c.Param("id")
	m.SetTaskID(id)
	var req updateTaskRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, m, "decode", domain.Invalid("body", "invalid JSON: %v", err))
	}
	patch, err := req.toPatch()
	if err != nil {
		return h.fail(c, m, "validate", err)
	}
	if patch.IfVersion, err = parseIfMatch(c.Request().Header.Get(headerIfMatch)); err != nil {
		return h.fail(c, m, "validate", err)
	}

	storeStart := time.Now()
	t, err := h.board.Update(id, patch)
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		return h.fail(c, m, "store", err)
	}
	return h.writeTask(c, m, http.StatusOK, t)
}

func (h *handlers) deleteTask(c echo.Context, m *requestMetrics) error {
	id := c.Param("id")
	m.SetTaskID(id)
	storeStart := time.Now()
	err := h.board.Delete(id)
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		return h.fail(c, m, "store", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) moveTask(c echo.Context, m *requestMetrics) error {
	id := c.Param("id")
	m.SetTaskID(id)
	var req moveTaskRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, m, "decode", domain.Invalid("body", "invalid JSON: %v", err))
	}
	if strings.TrimSpace(req.Status) == "" {
		return h.fail(c, m, "validate", domain.Invalid("status", "is required"))
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return h.fail(c, m, "validate", err)
	}
	order := math.MaxInt
	if req.Order != nil {
		order = *req.Order
	}
	version, err := parseIfMatch(c.Request().Header.Get(headerIfMatch))
	if err != nil {
		return h.fail(c, m, "validate", err)
	}

	storeStart := time.Now()
	var t domain.Task
	if version != nil {
		t, err = h.board.MoveIfVersion(id, status, order, *version)
	} else {
		t, err = h.board.Move(id, status, order)
	}
	m.ObserveStore(time.Since(storeStart))
	if err != nil {
		return h.fail(c, m, "store", err)
	}
	return h.writeTask(c, m, http.StatusOK, t)
}

func (h *handlers) getBoard(c echo.Context, m *requestMetrics) error {
	storeStart := time.Now()
	cols := projection.Board(h.board)
	m.ObserveStore(time.Since(storeStart))
	n := 0
	for _, col := range cols {
		n += len(col.Tasks)
	}
	m.SetTasksReturned(n)
	return h.writeJSON(c, m, cols)
}

func (h *handlers) getCalendar(c echo.Context, m *requestMetrics) error {
	storeStart := time.Now()
	groups := projection.Calendar(h.board)
	m.ObserveStore(time.Since(storeStart))
	n := 0
	for _, g := range groups {
		n += len(g.Tasks)
	}
	m.SetTasksReturned(n)
	return h.writeJSON(c, m, groups)
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// parseIfMatch reads a task version from an If-Match header. Absent and "*"
// impose no precondition.
func parseIfMatch(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return nil, nil
	}
	v, err := strconv.ParseInt(strings.Trim(strings.TrimPrefix(raw, "W/"), `"`), 10, 64)
	if err != nil || v < 1 {
		return nil, domain.Invalid("If-Match", "expected a task version, got %q", raw)
	}
	return &v, nil
}
