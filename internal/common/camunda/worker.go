package camunda

import (
	"sync"
	"time"

	"recruit-pipeline/internal/common/config"
	"recruit-pipeline/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobWorkerFactory is the part of zbc.Client needed to open job workers.
type JobWorkerFactory interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

var _ JobWorkerFactory = zbc.Client(nil)

// WorkerRegistry opens and tracks job workers so they can be closed together.
type WorkerRegistry struct {
	client JobWorkerFactory
	log    logger.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkerRegistry(client JobWorkerFactory, log logger.Logger) *WorkerRegistry {
	return &WorkerRegistry{
		client:  client,
		log:     log.Named("camunda"),
		workers: make(map[string]worker.JobWorker),
	}
}

// Register opens a job worker for taskType unless it is disabled. It returns
// whether a worker was started.
func (r *WorkerRegistry) Register(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !wcfg.Enabled {
		r.log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	jw := r.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	r.mu.Lock()
	if prev, ok := r.workers[taskType]; ok {
		prev.Close()
	}
	r.workers[taskType] = jw
	r.mu.Unlock()

	r.log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

// TaskTypes lists the registered task types.
func (r *WorkerRegistry) TaskTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.workers))
	for t := range r.workers {
		out = append(out, t)
	}
	return out
}

// Close stops every worker and waits for in-flight jobs.
func (r *WorkerRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for taskType, jw := range r.workers {
		jw.Close()
		jw.AwaitClose()
		r.log.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	r.workers = make(map[string]worker.JobWorker)
}
