package scheduler

import (
	"sync"

	"github.com/openmanus/manus/pkg/models"
)

// collabWait tracks one suspended parent task until all of its sub-tasks
// reach a terminal status.
type collabWait struct {
	agentID      string
	continuation string
	pending      map[string]bool
	results      []models.SubTaskResult
}

// fanIn collects sub-task results per suspended parent. When the last
// pending sub-task reports in, the accumulated state is handed back for the
// parent's resume and the wait is dropped.
type fanIn struct {
	mu    sync.Mutex
	waits map[string]*collabWait
}

func newFanIn() *fanIn {
	return &fanIn{waits: make(map[string]*collabWait)}
}

// begin registers a suspension of parentID on the given sub-task IDs.
func (f *fanIn) begin(parentID, agentID, continuation string, subTaskIDs []string) {
	pending := make(map[string]bool, len(subTaskIDs))
	for _, id := range subTaskIDs {
		pending[id] = true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits[parentID] = &collabWait{
		agentID:      agentID,
		continuation: continuation,
		pending:      pending,
	}
}

// report records one sub-task's terminal result. It returns the resume state
// and ready=true when this was the last pending sub-task.
func (f *fanIn) report(parentID string, result models.SubTaskResult) (*collabWait, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.waits[parentID]
	if !ok || !w.pending[result.TaskID] {
		return nil, false
	}
	delete(w.pending, result.TaskID)
	w.results = append(w.results, result)
	if len(w.pending) > 0 {
		return nil, false
	}
	delete(f.waits, parentID)
	return w, true
}

// pendingSubTasks returns the sub-task IDs a suspended parent still waits on.
func (f *fanIn) pendingSubTasks(parentID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.waits[parentID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(w.pending))
	for id := range w.pending {
		out = append(out, id)
	}
	return out
}
