// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package tasks implements detached execution of long-running requests,
// pollable by id, with TTL cleanup and terminal-status guarding. Grounded
// on mcp/tasks_server.go (serverTasks / serverTaskEntry), generalized
// from a tools/call-specific mechanism into a protocol.Router plugin that
// can detach any request carrying `_meta.task`.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcpcore/protocol-go/internal/json"
	"github.com/mcpcore/protocol-go/internal/jsonrpc2"
	"github.com/mcpcore/protocol-go/jsonrpc"
	"github.com/mcpcore/protocol-go/protocol"
)

// Status is one of the task lifecycle states.
type Status string

const (
	StatusWorking Status = "working"
	StatusInputRequired Status = "input_required"
	StatusCompleted Status = "completed"
	StatusFailed Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task is the wire shape of a detached task: {taskId, status, ttl?,
// createdAt, lastUpdatedAt, pollInterval, statusMessage?}.
type Task struct {
	TaskID string
	Status Status
	TTL time.Duration
	CreatedAt time.Time
	LastUpdatedAt time.Time
	PollInterval time.Duration
	StatusMessage string
	SessionID string
}

var (
	ErrNotFound = errors.New("tasks: task not found")
	ErrInvalidCursor = errors.New("tasks: invalid cursor")
	ErrTerminalStatus = fmt.Errorf("tasks: task already in a terminal status")
)

// DefaultPollInterval mirrors a conservative client polling cadence.
// Memory sets it as the PollInterval of every task it creates; Memory
// has no option to change it.
const DefaultPollInterval = 2 * time.Second

// Store persists task state. Implementations must guard terminal
// transitions: a task in a terminal status never transitions out.
type Store interface {
	CreateTask(sessionID string, ttl time.Duration) (Task, error)
	GetTask(taskID string) (Task, error)
	GetTaskResult(taskID string) (jsonrpc2.RawMessage, error)
	StoreTaskResult(taskID string, result jsonrpc2.RawMessage) error
	UpdateTaskStatus(taskID string, status Status, statusMessage string) (Task, error)
	ListTasks(cursor string, sessionID string, pageSize int) (tasks []Task, nextCursor string, err error)
	DeleteTask(taskID string) error
}

type taskEntry struct {
	task Task
	seq uint64
	result jsonrpc2.RawMessage
	hasResult bool
	expiry *time.Timer
}

// Memory is an in-memory Store. TTL-less tasks persist until DeleteTask
// removes them; a TTL schedules deletion at createdAt+ttl and is reset to
// now+ttl whenever a result is stored or the task reaches a terminal
// status.
type Memory struct {
	mu sync.Mutex
	next uint64
	tasks map[string]*taskEntry
}

func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]*taskEntry)}
}

func (m *Memory) CreateTask(sessionID string, ttl time.Duration) (Task, error) {
	now := time.Now()
	t := Task{
 TaskID: uuid.NewString(),
 Status: StatusWorking,
 StatusMessage: "The operation is now in progress.",
 TTL: ttl,
 CreatedAt: now,
 LastUpdatedAt: now,
 PollInterval: DefaultPollInterval,
 SessionID: sessionID,
	}
	m.mu.Lock()
	m.next++
	e := &taskEntry{task: t, seq: m.next}
	if ttl > 0 {
 e.expiry = time.AfterFunc(ttl, func() { m.DeleteTask(t.TaskID) })
	}
	m.tasks[t.TaskID] = e
	m.mu.Unlock()
	return t, nil
}

func (m *Memory) GetTask(taskID string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[taskID]
	if !ok {
 return Task{}, ErrNotFound
	}
	return e.task, nil
}

func (m *Memory) GetTaskResult(taskID string) (jsonrpc2.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[taskID]
	if !ok {
 return nil, ErrNotFound
	}
	if !e.hasResult {
 return nil, nil
	}
	return e.result, nil
}

func (m *Memory) StoreTaskResult(taskID string, result jsonrpc2.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[taskID]
	if !ok {
 return ErrNotFound
	}
	e.result = result
	e.hasResult = true
	m.resetExpiryLocked(e)
	return nil
}

func (m *Memory) UpdateTaskStatus(taskID string, status Status, statusMessage string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[taskID]
	if !ok {
 return Task{}, ErrNotFound
	}
	if e.task.Status.Terminal() {
 return e.task, ErrTerminalStatus
	}
	e.task.Status = status
	e.task.StatusMessage = statusMessage
	e.task.LastUpdatedAt = time.Now()
	if status.Terminal() {
 m.resetExpiryLocked(e)
	}
	return e.task, nil
}

func (m *Memory) resetExpiryLocked(e *taskEntry) {
	if e.task.TTL <= 0 {
 return
	}
	if e.expiry != nil {
 e.expiry.Stop()
	}
	taskID := e.task.TaskID
	e.expiry = time.AfterFunc(e.task.TTL, func() { m.DeleteTask(taskID) })
}

func (m *Memory) ListTasks(cursor string, sessionID string, pageSize int) ([]Task, string, error) {
	if pageSize < 1 {
 pageSize = 1
	}
	m.mu.Lock()
	entries := make([]*taskEntry, 0, len(m.tasks))
	for _, e := range m.tasks {
 if sessionID != "" && e.task.SessionID != sessionID {
 continue
 }
 entries = append(entries, e)
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	start := 0
	if cursor != "" {
 after, err := strconv.ParseUint(cursor, 10, 64)
 if err != nil {
 return nil, "", ErrInvalidCursor
 }
 found := false
 for i, e := range entries {
 if e.seq == after {
 start = i + 1
 found = true
 break
 }
 }
 if !found {
 return nil, "", ErrInvalidCursor
 }
	}

	end := start + pageSize
	if end > len(entries) {
 end = len(entries)
	}

	out := make([]Task, 0, end-start)
	for _, e := range entries[start:end] {
 out = append(out, e.task)
	}
	next := ""
	if end < len(entries) {
 next = strconv.FormatUint(entries[end-1].seq, 10)
	}
	return out, next, nil
}

func (m *Memory) DeleteTask(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tasks[taskID]; ok && e.expiry != nil {
 e.expiry.Stop()
	}
	delete(m.tasks, taskID)
	return nil
}

var _ Store = (*Memory)(nil)

// taskMeta is the `_meta.task` augmentation an inbound request carries to
// request detached execution.
type taskMeta struct {
	TTLMillis *int64 `json:"ttl,omitempty"`
}

const taskMetaKey = "io.mcpcore/task"

// Plugin intercepts inbound requests carrying `_meta.task` and runs them
// as detached, pollable tasks. It also registers the four
// task wire methods.
type Plugin struct {
	store Store
}

func NewPlugin(store Store) *Plugin {
	return &Plugin{store: store}
}

func (p *Plugin) Name() string { return "tasks" }

func (p *Plugin) Install(host protocol.Host) error {
	host.RegisterHandler("tasks/get", p.handleGet)
	host.RegisterHandler("tasks/list", p.handleList)
	host.RegisterHandler("tasks/cancel", p.handleCancel)
	host.RegisterHandler("tasks/result", p.handleResult)
	return nil
}

// ShouldRoute implements protocol.Router: any request carrying a
// `_meta.task` object is taken over entirely by this plugin.
func (p *Plugin) ShouldRoute(msg jsonrpc2.Message) bool {
	req, ok := msg.(*jsonrpc2.Request)
	if !ok {
 return false
	}
	return extractTaskMeta(req) != nil
}

// Route creates the task, launches the underlying handler asynchronously
// via host.InvokeHandler, and immediately answers the caller with a
// CreateTaskResult-shaped object: acknowledgement is synchronous,
// execution is not.
func (p *Plugin) Route(ctx context.Context, msg jsonrpc2.Message, host protocol.Host) error {
	req := msg.(*jsonrpc2.Request)
	tm := extractTaskMeta(req)

	var ttl time.Duration
	if tm.TTLMillis != nil {
 ttl = time.Duration(*tm.TTLMillis) * time.Millisecond
	}

	task, err := p.store.CreateTask(host.SessionID(), ttl)
	if err != nil {
 host.RespondError(ctx, req, err)
 return nil
	}

	strippedParams := stripTaskMeta(req.Params)
	innerReq := jsonrpc2.NewRequest(req.ID, req.Method, strippedParams)

	go func() {
 result, runErr := host.InvokeHandler(context.Background(), innerReq)
 if runErr != nil {
 p.store.UpdateTaskStatus(task.TaskID, StatusFailed, runErr.Error())
 return
 }
 _ = p.store.StoreTaskResult(task.TaskID, result)
 p.store.UpdateTaskStatus(task.TaskID, StatusCompleted, "")
	}()

	ack, err := json.Marshal(map[string]any{
 "task": map[string]any{
 "taskId": task.TaskID,
 "status": string(task.Status),
 "createdAt": task.CreatedAt.Format(time.RFC3339),
 "lastUpdatedAt": task.LastUpdatedAt.Format(time.RFC3339),
 "pollInterval": task.PollInterval.Milliseconds(),
 "statusMessage": task.StatusMessage,
 },
	})
	if err != nil {
 host.RespondError(ctx, req, err)
 return nil
	}
	host.RespondResult(ctx, req, ack)
	return nil
}

func extractTaskMeta(req *jsonrpc2.Request) *taskMeta {
	if len(req.Params) == 0 {
 return nil
	}
	var params struct {
 Meta map[string]json.RawMessage `json:"_meta"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
 return nil
	}
	raw, ok := params.Meta[taskMetaKey]
	if !ok {
 return nil
	}
	var tm taskMeta
	if err := json.Unmarshal(raw, &tm); err != nil {
 return &taskMeta{}
	}
	return &tm
}

func stripTaskMeta(params jsonrpc2.RawMessage) jsonrpc2.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(params, &obj); err != nil {
 return params
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(obj["_meta"], &meta); err == nil {
 delete(meta, taskMetaKey)
 if len(meta) == 0 {
 delete(obj, "_meta")
 } else {
 if b, err := json.Marshal(meta); err == nil {
 obj["_meta"] = b
 }
 }
	}
	out, err := json.Marshal(obj)
	if err != nil {
 return params
	}
	return out
}

type taskIDParams struct {
	TaskID string `json:"taskId"`
}

func (p *Plugin) handleGet(ctx context.Context, req *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
 return nil, jsonrpc.InvalidParams(err.Error())
	}
	t, err := p.store.GetTask(params.TaskID)
	if err != nil {
 return nil, jsonrpc.InvalidParams("task not found")
	}
	return marshalTask(t)
}

type listTasksParams struct {
	Cursor string `json:"cursor"`
}

func (p *Plugin) handleList(ctx context.Context, req *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
	var params listTasksParams
	if len(req.Params) > 0 {
 _ = json.Unmarshal(req.Params, &params)
	}
	sessionID := protocol.SessionIDFromContext(ctx)
	list, next, err := p.store.ListTasks(params.Cursor, sessionID, 50)
	if err != nil {
 return nil, jsonrpc.InvalidParams("invalid cursor")
	}
	tasksOut := make([]map[string]any, 0, len(list))
	for _, t := range list {
 tasksOut = append(tasksOut, taskToMap(t))
	}
	return json.Marshal(map[string]any{"tasks": tasksOut, "nextCursor": next})
}

func (p *Plugin) handleCancel(ctx context.Context, req *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
 return nil, jsonrpc.InvalidParams(err.Error())
	}
	t, err := p.store.UpdateTaskStatus(params.TaskID, StatusCancelled, "The task was cancelled by request.")
	if errors.Is(err, ErrTerminalStatus) {
 return nil, jsonrpc.InvalidParams(fmt.Sprintf("cannot cancel task: already in terminal status %q", t.Status))
	}
	if err != nil {
 return nil, jsonrpc.InvalidParams("task not found")
	}
	return marshalTask(t)
}

func (p *Plugin) handleResult(ctx context.Context, req *jsonrpc2.Request) (jsonrpc2.RawMessage, error) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
 return nil, jsonrpc.InvalidParams(err.Error())
	}
	t, err := p.store.GetTask(params.TaskID)
	if err != nil {
 return nil, jsonrpc.InvalidParams("task not found")
	}
	if !t.Status.Terminal() {
 return nil, jsonrpc.InvalidRequest("task has not reached a terminal status")
	}
	result, err := p.store.GetTaskResult(params.TaskID)
	if err != nil {
 return nil, jsonrpc.InvalidParams("task not found")
	}
	return result, nil
}

func marshalTask(t Task) (jsonrpc2.RawMessage, error) {
	return json.Marshal(taskToMap(t))
}

func taskToMap(t Task) map[string]any {
	return map[string]any{
 "taskId": t.TaskID,
 "status": string(t.Status),
 "createdAt": t.CreatedAt.Format(time.RFC3339),
 "lastUpdatedAt": t.LastUpdatedAt.Format(time.RFC3339),
 "pollInterval": t.PollInterval.Milliseconds(),
 "statusMessage": t.StatusMessage,
	}
}
