package task

import "context"

// Task is the minimal shape the approval/merge engine and session registry
// need from a task. The full task model (markdown body, comments, links) is
// owned by the task-body markdown backend and isn't modeled here.
type Task struct {
	ID     ID
	Title  string
	Status Status
}

// Filter narrows ListTasks results.
type Filter struct {
	Status *Status
}

// Store is the task-store contract this core depends on for task-status
// coupling. It is deliberately narrow: only what the approval engine
// and CLI need to read/mutate status. No implementation is provided in this
// module — the markdown task-body backend that implements it lives outside
// this core's scope — but NoopStore below lets callers that don't need task
// coupling construct an Engine without a real backend.
type Store interface {
	GetTask(ctx context.Context, id ID) (*Task, error)
	GetTaskStatus(ctx context.Context, id ID) (Status, error)
	SetTaskStatus(ctx context.Context, id ID, status Status) error
	ListTasks(ctx context.Context, filter Filter) ([]*Task, error)
	CreateTask(ctx context.Context, spec Task) (*Task, error)
}

// NoopStore is a Store that reports every task as not found and accepts (but
// discards) status writes. It exists so callers that don't wire a real task
// store can still construct an approval.Engine without a nil-interface
// check at every call site.
type NoopStore struct{}

func (NoopStore) GetTask(context.Context, ID) (*Task, error)                { return nil, nil }
func (NoopStore) GetTaskStatus(context.Context, ID) (Status, error)         { return "", nil }
func (NoopStore) SetTaskStatus(context.Context, ID, Status) error           { return nil }
func (NoopStore) ListTasks(context.Context, Filter) ([]*Task, error)        { return nil, nil }
func (NoopStore) CreateTask(_ context.Context, spec Task) (*Task, error)    { return &spec, nil }

var _ Store = NoopStore{}
