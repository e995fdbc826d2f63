package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openmanus/manus/pkg/models"
)

var (
	// ErrUnknownTask indicates a task ID with no stored record.
	ErrUnknownTask = errors.New("scheduler: unknown task")
	// ErrDuplicateTask indicates a create with an already-stored ID.
	ErrDuplicateTask = errors.New("scheduler: duplicate task")
	// ErrInvalidTransition indicates a status change the task state machine
	// does not allow.
	ErrInvalidTransition = errors.New("scheduler: invalid status transition")
)

// Store holds task records in memory, guarded by a single lock. All reads
// return copies so callers never share the stored record.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
	order []string
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*models.Task)}
}

// Create stores a new task record.
func (s *Store) Create(task models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	s.tasks[task.ID] = &task
	s.order = append(s.order, task.ID)
	return nil
}

// Get returns a copy of the task record.
func (s *Store) Get(id string) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return *t, nil
}

// Transition moves the task to a new status, applying mutate to the record
// under the same lock. The state machine is enforced: an edge the status
// graph does not allow returns ErrInvalidTransition and leaves the record
// untouched.
func (s *Store) Transition(id string, to models.TaskStatus, mutate func(*models.Task)) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	if !t.Status.CanTransition(to) {
		return models.Task{}, fmt.Errorf("%w: %s -> %s for task %s", ErrInvalidTransition, t.Status, to, id)
	}
	t.Status = to
	if mutate != nil {
		mutate(t)
	}
	if to.Terminal() && t.CompletedAt == nil {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	return *t, nil
}

// Update applies mutate to the record without a status change.
func (s *Store) Update(id string, mutate func(*models.Task)) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	mutate(t)
	return *t, nil
}

// List returns copies of all task records in creation order.
func (s *Store) List() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tasks[id])
	}
	return out
}

// Children returns copies of the tasks spawned by the given parent, sorted
// by creation time.
func (s *Store) Children(parentID string) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, id := range s.order {
		if s.tasks[id].ParentTaskID == parentID {
			out = append(out, *s.tasks[id])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
