// Package scheduler owns the task lifecycle: deferred classification,
// agent selection against the registry, the worker pool that drives
// execution, and the fan-out/fan-in of collaborative tasks.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openmanus/manus/internal/agents"
	"github.com/openmanus/manus/internal/classifier"
	"github.com/openmanus/manus/internal/registry"
	"github.com/openmanus/manus/pkg/models"
)

// ErrAlreadyTerminal indicates a cancel request for a task that already
// finished.
var ErrAlreadyTerminal = errors.New("scheduler: task already terminal")

// noAgentAvailable is the failure reason when assignment retries run out.
const noAgentAvailable = "no agent available"

// Config tunes the scheduler's worker pool and assignment retry behavior.
type Config struct {
	// Workers is the number of goroutines pulling from the task queue.
	Workers int
	// MaxAssignAttempts bounds how many assignment rounds a task gets
	// before it fails with no agent available.
	MaxAssignAttempts int
	// RequeueDelay is the base backoff between assignment rounds; it
	// doubles per round.
	RequeueDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAssignAttempts <= 0 {
		c.MaxAssignAttempts = 5
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = 100 * time.Millisecond
	}
	return c
}

// taskHandle carries the per-task context so cancellation can interrupt a
// running agent.
type taskHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Scheduler routes tasks to agents and drives them through the status
// machine. Submit is safe for concurrent use once Start has run.
type Scheduler struct {
	cfg        Config
	store      *Store
	registry   *registry.Registry
	classifier *classifier.Classifier
	agents     map[string]agents.Agent
	log        *zap.Logger

	mu      sync.Mutex
	queue   []string
	handles map[string]taskHandle
	started bool

	trigger chan struct{}
	fanin   *fanIn

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a Scheduler over the given agents. Each agent must already be
// registered in the registry under the same ID.
func New(cfg Config, store *Store, reg *registry.Registry, cls *classifier.Classifier, agentList []agents.Agent, log *zap.Logger) *Scheduler {
	byID := make(map[string]agents.Agent, len(agentList))
	for _, a := range agentList {
		byID[a.ID()] = a
	}
	return &Scheduler{
		cfg:        cfg.withDefaults(),
		store:      store,
		registry:   reg,
		classifier: cls,
		agents:     byID,
		log:        log,
		handles:    make(map[string]taskHandle),
		trigger:    make(chan struct{}, 1),
		fanin:      newFanIn(),
	}
}

// Start launches the worker pool. Workers run until Stop or until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.mu.Unlock()

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(runCtx)
	}
	s.log.Info("scheduler started", zap.Int("workers", s.cfg.Workers))
}

// Stop halts the worker pool and waits for in-flight work to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.runCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Submit stores a pending task and queues it for assignment, returning the
// task ID right away. Classification happens on a worker before the first
// assignment round, so a slow language-model fallback never blocks the
// caller.
func (s *Scheduler) Submit(ctx context.Context, description string) (string, error) {
	task := models.Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      models.TaskStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Create(task); err != nil {
		return "", err
	}
	s.log.Info("task submitted", zap.String("task_id", task.ID))
	s.enqueue(task.ID)
	return task.ID, nil
}

// Status returns the current task record.
func (s *Scheduler) Status(id string) (models.Task, error) {
	return s.store.Get(id)
}

// SubTasks returns the tasks spawned by the given parent.
func (s *Scheduler) SubTasks(parentID string) []models.Task {
	return s.store.Children(parentID)
}

// Tasks returns all task records in creation order.
func (s *Scheduler) Tasks() []models.Task {
	return s.store.List()
}

// Cancel requests cancellation of a task. Pending tasks cancel immediately;
// running or collaborating tasks move to cancelling and finish as cancelled
// once their agent returns. Cancelling a task that is already on its way out
// is a no-op.
func (s *Scheduler) Cancel(id string) error {
	for {
		t, err := s.store.Get(id)
		if err != nil {
			return err
		}
		switch {
		case t.Status.Terminal():
			return ErrAlreadyTerminal
		case t.Status == models.TaskStatusCancelling:
			return nil
		case t.Status == models.TaskStatusPending:
			_, err := s.store.Transition(id, models.TaskStatusCancelled, func(rec *models.Task) {
				rec.Error = "cancelled before assignment"
			})
			if errors.Is(err, ErrInvalidTransition) {
				// A worker grabbed the task between the read and the
				// transition; retry against its new status.
				continue
			}
			if err != nil {
				return err
			}
			s.afterTerminal(context.Background(), id)
			return nil
		default:
			_, err := s.store.Transition(id, models.TaskStatusCancelling, nil)
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			if err != nil {
				return err
			}
			s.cancelHandle(id)
			// A collaborating parent drags its unfinished sub-tasks along.
			for _, subID := range s.fanin.pendingSubTasks(id) {
				if err := s.Cancel(subID); err != nil && !errors.Is(err, ErrAlreadyTerminal) {
					s.log.Warn("sub-task cancel failed", zap.String("task_id", subID), zap.Error(err))
				}
			}
			return nil
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
		}
		for {
			id, ok := s.dequeue()
			if !ok {
				break
			}
			s.process(ctx, id)
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
		// Another worker may have enqueued while this one drained; make
		// sure somebody wakes up for it.
		s.mu.Lock()
		backlog := len(s.queue)
		s.mu.Unlock()
		if backlog > 0 {
			s.wake()
		}
	}
}

// process drives one queued task through classification, assignment, and
// execution.
func (s *Scheduler) process(ctx context.Context, id string) {
	t, err := s.store.Get(id)
	if err != nil || t.Status != models.TaskStatusPending {
		return
	}

	if len(t.RequiredCapabilities) == 0 {
		tags := s.classify(ctx, t.Description)
		t, err = s.store.Update(id, func(rec *models.Task) {
			rec.RequiredCapabilities = tags
		})
		if err != nil || t.Status != models.TaskStatusPending {
			// Cancelled while classifying.
			return
		}
	}

	candidates := s.registry.Candidates(t.RequiredCapabilities)
	if len(candidates) == 0 {
		s.fail(ctx, id, "no agent provides the required capabilities")
		return
	}

	var agentID string
	for _, c := range candidates {
		if err := s.registry.Reserve(c.AgentID); err == nil {
			agentID = c.AgentID
			break
		}
	}
	if agentID == "" {
		// Every capable agent is at capacity; back off and retry a
		// bounded number of rounds.
		s.requeue(ctx, id, t.Attempts+1)
		return
	}

	if _, err := s.store.Transition(id, models.TaskStatusAssigned, func(rec *models.Task) {
		rec.AssignedAgentID = agentID
	}); err != nil {
		// Cancelled between dequeue and assignment.
		s.release(agentID)
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	s.setHandle(id, taskCtx, cancel)

	t, err = s.store.Transition(id, models.TaskStatusInProgress, nil)
	if err != nil {
		s.finishCancelled(ctx, id, agentID)
		return
	}

	s.log.Debug("task executing",
		zap.String("task_id", id),
		zap.String("agent_id", agentID))
	out, execErr := s.agents[agentID].Execute(taskCtx, t)
	s.handleOutcome(ctx, t, agentID, out, execErr)
}

// handleOutcome settles a task after Execute or Resume returns.
func (s *Scheduler) handleOutcome(ctx context.Context, t models.Task, agentID string, out *agents.Outcome, execErr error) {
	cur, err := s.store.Get(t.ID)
	if err != nil {
		return
	}
	if cur.Status == models.TaskStatusCancelling {
		s.finishCancelled(ctx, t.ID, agentID)
		return
	}

	if execErr != nil {
		s.clearHandle(t.ID)
		s.release(agentID)
		s.log.Warn("task failed",
			zap.String("task_id", t.ID),
			zap.String("agent_id", agentID),
			zap.Error(execErr))
		s.settle(ctx, t.ID, models.TaskStatusFailed, func(rec *models.Task) {
			rec.Error = execErr.Error()
		})
		return
	}

	if out.NeedsCollaboration() {
		// The agent keeps its reservation while it waits; a suspended task
		// still occupies its slot.
		if _, err := s.store.Transition(t.ID, models.TaskStatusCollaborating, nil); err != nil {
			s.finishCancelled(ctx, t.ID, agentID)
			return
		}
		subIDs := make([]string, 0, len(out.SubTasks))
		for _, req := range out.SubTasks {
			subIDs = append(subIDs, s.spawnSubTask(t.ID, req))
		}
		s.fanin.begin(t.ID, agentID, out.Continuation, subIDs)
		s.log.Info("task collaborating",
			zap.String("task_id", t.ID),
			zap.Int("sub_tasks", len(subIDs)))
		for _, subID := range subIDs {
			s.enqueue(subID)
		}
		return
	}

	s.clearHandle(t.ID)
	s.release(agentID)
	s.settle(ctx, t.ID, models.TaskStatusCompleted, func(rec *models.Task) {
		rec.Result = out.Payload
	})
}

// settle moves a task to its terminal status. Cancel may flip the record to
// cancelling between the outcome read and this transition; the agent has
// already returned and the slot is already freed, so the request resolves
// here as cancelled rather than leaving the task stuck.
func (s *Scheduler) settle(ctx context.Context, id string, status models.TaskStatus, mutate func(*models.Task)) {
	rec, err := s.store.Transition(id, status, mutate)
	if errors.Is(err, ErrInvalidTransition) {
		if cur, getErr := s.store.Get(id); getErr == nil && cur.Status == models.TaskStatusCancelling {
			rec, err = s.store.Transition(id, models.TaskStatusCancelled, func(r *models.Task) {
				if r.Error == "" {
					r.Error = "cancelled"
				}
			})
		}
	}
	if err != nil {
		s.log.Warn("terminal transition rejected", zap.String("task_id", id), zap.Error(err))
		return
	}
	s.log.Info("task settled",
		zap.String("task_id", id),
		zap.String("status", string(rec.Status)))
	s.afterTerminal(ctx, id)
}

// classify resolves a description to capability tags, routing failures to
// the general-purpose research capability instead of rejecting the task.
func (s *Scheduler) classify(ctx context.Context, description string) []models.CapabilityTag {
	tags, err := s.classifier.Classify(ctx, description)
	if err != nil {
		s.log.Info("classification fell back to research", zap.Error(err))
		return []models.CapabilityTag{models.CapResearch}
	}
	return tags
}

// spawnSubTask stores a child task. Requests without pinned capabilities
// classify during assignment like any fresh submission.
func (s *Scheduler) spawnSubTask(parentID string, req models.SubTaskRequest) string {
	sub := models.Task{
		ID:                   uuid.NewString(),
		ParentTaskID:         parentID,
		Description:          req.Description,
		RequiredCapabilities: req.Capabilities,
		Status:               models.TaskStatusPending,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.store.Create(sub); err != nil {
		s.log.Error("sub-task create failed", zap.String("parent_id", parentID), zap.Error(err))
	}
	return sub.ID
}

// afterTerminal reports a finished sub-task to its parent's fan-in and
// resumes the parent when the last one lands.
func (s *Scheduler) afterTerminal(ctx context.Context, id string) {
	t, err := s.store.Get(id)
	if err != nil || t.ParentTaskID == "" {
		return
	}
	result := models.SubTaskResult{
		TaskID:      t.ID,
		Description: t.Description,
		Status:      t.Status,
		Result:      t.Result,
		Error:       t.Error,
	}
	if w, ready := s.fanin.report(t.ParentTaskID, result); ready {
		s.resume(ctx, t.ParentTaskID, w)
	}
}

// resume hands the collected sub-task results back to the suspended agent.
func (s *Scheduler) resume(ctx context.Context, parentID string, w *collabWait) {
	parent, err := s.store.Get(parentID)
	if err != nil {
		return
	}
	if parent.Status == models.TaskStatusCancelling {
		s.finishCancelled(ctx, parentID, w.agentID)
		return
	}
	parent, err = s.store.Transition(parentID, models.TaskStatusInProgress, nil)
	if err != nil {
		s.finishCancelled(ctx, parentID, w.agentID)
		return
	}

	s.log.Debug("task resuming",
		zap.String("task_id", parentID),
		zap.Int("results", len(w.results)))
	out, resErr := s.agents[w.agentID].Resume(s.handleCtx(parentID, ctx), parent, w.continuation, w.results)
	s.handleOutcome(ctx, parent, w.agentID, out, resErr)
}

// fail marks a task failed before it ever reached an agent.
func (s *Scheduler) fail(ctx context.Context, id, reason string) {
	if _, err := s.store.Transition(id, models.TaskStatusFailed, func(rec *models.Task) {
		rec.Error = reason
	}); err != nil {
		return
	}
	s.log.Warn("task failed before assignment", zap.String("task_id", id), zap.String("reason", reason))
	s.afterTerminal(ctx, id)
}

// requeue backs a task off for another assignment round, failing it once
// the rounds run out.
func (s *Scheduler) requeue(ctx context.Context, id string, attempts int) {
	if attempts >= s.cfg.MaxAssignAttempts {
		s.fail(ctx, id, noAgentAvailable)
		return
	}
	if _, err := s.store.Update(id, func(rec *models.Task) { rec.Attempts = attempts }); err != nil {
		return
	}
	delay := s.cfg.RequeueDelay << (attempts - 1)
	time.AfterFunc(delay, func() { s.enqueue(id) })
}

// finishCancelled settles a cancelling task and frees its agent slot.
func (s *Scheduler) finishCancelled(ctx context.Context, id, agentID string) {
	s.clearHandle(id)
	if agentID != "" {
		s.release(agentID)
	}
	if _, err := s.store.Transition(id, models.TaskStatusCancelled, func(rec *models.Task) {
		if rec.Error == "" {
			rec.Error = "cancelled"
		}
	}); err != nil {
		s.log.Warn("cancelled-status transition rejected", zap.String("task_id", id), zap.Error(err))
		return
	}
	s.log.Info("task cancelled", zap.String("task_id", id))
	s.afterTerminal(ctx, id)
}

func (s *Scheduler) release(agentID string) {
	if err := s.registry.Release(agentID); err != nil {
		s.log.Warn("agent release failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}

func (s *Scheduler) enqueue(id string) {
	s.mu.Lock()
	s.queue = append(s.queue, id)
	s.mu.Unlock()
	s.wake()
}

func (s *Scheduler) dequeue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	id := s.queue[0]
	s.queue = s.queue[1:]
	return id, true
}

func (s *Scheduler) wake() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) setHandle(id string, ctx context.Context, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[id] = taskHandle{ctx: ctx, cancel: cancel}
}

// handleCtx returns the task's execution context, or the fallback when the
// handle is already gone.
func (s *Scheduler) handleCtx(id string, fallback context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[id]; ok {
		return h.ctx
	}
	return fallback
}

// cancelHandle interrupts a running agent without dropping the handle; the
// settle path clears it.
func (s *Scheduler) cancelHandle(id string) {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if ok {
		h.cancel()
	}
}

func (s *Scheduler) clearHandle(id string) {
	s.mu.Lock()
	h, ok := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()
	if ok {
		h.cancel()
	}
}
