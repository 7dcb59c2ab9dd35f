// Package workerpool implements the bounded-concurrency primitive shared by
// the staging coordinator (one task per discovered file) and the metric
// pipeline's single-measurement phase (one task per measurement). A fixed
// number of long-lived workers pull from a shared queue; there is
// deliberately no per-group or per-file goroutine spawning.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one unit of dispatch: ingest one file, compute one metric, etc.
type Task struct {
	ID      string
	Execute func(ctx context.Context) error
	Created time.Time
}

// worker is a long-lived goroutine pulling tasks off its own channel.
type worker struct {
	id       int
	pool     *WorkerPool
	taskChan chan Task
	quit     chan struct{}
	active   int64
	logger   *logrus.Logger
}

// WorkerPool runs a fixed number of workers against a shared task queue.
type WorkerPool struct {
	workers   []*worker
	taskQueue chan Task
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *logrus.Logger
	config    Config

	totalTasks     int64
	activeTasks    int64
	completedTasks int64
	failedTasks    int64

	isRunning bool
	mutex     sync.RWMutex
}

// Config bounds the pool's size and per-task timeout.
type Config struct {
	MaxWorkers      int
	QueueSize       int
	TaskTimeout     time.Duration
	EnableMetrics   bool
	ShutdownTimeout time.Duration
}

// New builds a WorkerPool; MaxWorkers defaults to runtime.NumCPU() and is
// always clamped by the caller to the spec's 1..16 worker-count bound.
func New(config Config, logger *logrus.Logger) *WorkerPool {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.MaxWorkers * 10
	}
	if config.TaskTimeout == 0 {
		config.TaskTimeout = 5 * time.Minute
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &WorkerPool{
		taskQueue: make(chan Task, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		config:    config,
		workers:   make([]*worker, 0, config.MaxWorkers),
	}

	for i := 0; i < config.MaxWorkers; i++ {
		pool.workers = append(pool.workers, &worker{
			id:       i,
			pool:     pool,
			taskChan: make(chan Task, 1),
			quit:     make(chan struct{}),
			logger:   logger,
		})
	}

	return pool
}

// Start launches the worker goroutines, the dispatcher, and (if enabled)
// the periodic metrics logger.
func (wp *WorkerPool) Start() error {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()

	if wp.isRunning {
		return nil
	}

	wp.logger.WithFields(logrus.Fields{
		"max_workers": wp.config.MaxWorkers,
		"queue_size":  wp.config.QueueSize,
	}).Info("starting worker pool")

	for _, w := range wp.workers {
		wp.wg.Add(1)
		go w.run()
	}

	wp.wg.Add(1)
	go wp.dispatch()

	if wp.config.EnableMetrics {
		wp.wg.Add(1)
		go wp.reportMetrics()
	}

	wp.isRunning = true
	return nil
}

// Stop cancels the pool's context and waits for in-flight tasks to drain,
// up to ShutdownTimeout.
func (wp *WorkerPool) Stop() error {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()

	if !wp.isRunning {
		return nil
	}

	wp.logger.Info("stopping worker pool")
	wp.cancel()
	for _, w := range wp.workers {
		close(w.quit)
	}

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Info("worker pool stopped")
	case <-time.After(wp.config.ShutdownTimeout):
		wp.logger.Warn("worker pool shutdown timed out")
	}

	wp.isRunning = false
	return nil
}

// Submit enqueues task, blocking until the queue accepts it or the pool's
// context is cancelled.
func (wp *WorkerPool) Submit(task Task) error {
	if !wp.isRunning {
		return ErrPoolNotRunning
	}

	task.Created = time.Now()
	atomic.AddInt64(&wp.totalTasks, 1)

	select {
	case wp.taskQueue <- task:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	MaxWorkers     int
	ActiveWorkers  int
	QueuedTasks    int
	QueueSize      int
	TotalTasks     int64
	ActiveTasks    int64
	CompletedTasks int64
	FailedTasks    int64
	IsRunning      bool
}

func (wp *WorkerPool) Stats() Stats {
	return Stats{
		MaxWorkers:     wp.config.MaxWorkers,
		ActiveWorkers:  wp.activeWorkerCount(),
		QueuedTasks:    len(wp.taskQueue),
		QueueSize:      wp.config.QueueSize,
		TotalTasks:     atomic.LoadInt64(&wp.totalTasks),
		ActiveTasks:    atomic.LoadInt64(&wp.activeTasks),
		CompletedTasks: atomic.LoadInt64(&wp.completedTasks),
		FailedTasks:    atomic.LoadInt64(&wp.failedTasks),
		IsRunning:      wp.isRunning,
	}
}

func (wp *WorkerPool) dispatch() {
	defer wp.wg.Done()

	for {
		select {
		case task := <-wp.taskQueue:
			wp.assign(task)
		case <-wp.ctx.Done():
			return
		}
	}
}

// assign offers the task to each worker's one-slot channel in index order,
// starting from worker 0 every time, and hands it to the first one with
// room; once every channel is full it blocks on the first worker. Tasks
// are not rotated round-robin across workers.
func (wp *WorkerPool) assign(task Task) {
	for _, w := range wp.workers {
		select {
		case w.taskChan <- task:
			return
		default:
			continue
		}
	}

	select {
	case wp.workers[0].taskChan <- task:
	case <-wp.ctx.Done():
		atomic.AddInt64(&wp.failedTasks, 1)
	}
}

func (wp *WorkerPool) activeWorkerCount() int {
	n := 0
	for _, w := range wp.workers {
		if atomic.LoadInt64(&w.active) > 0 {
			n++
		}
	}
	return n
}

func (wp *WorkerPool) reportMetrics() {
	defer wp.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s := wp.Stats()
			wp.logger.WithFields(logrus.Fields{
				"active_workers":  s.ActiveWorkers,
				"queued_tasks":    s.QueuedTasks,
				"total_tasks":     s.TotalTasks,
				"completed_tasks": s.CompletedTasks,
				"failed_tasks":    s.FailedTasks,
			}).Debug("worker pool metrics")
		case <-wp.ctx.Done():
			return
		}
	}
}

func (w *worker) run() {
	defer w.pool.wg.Done()

	w.logger.WithField("worker_id", w.id).Debug("worker started")

	for {
		select {
		case task := <-w.taskChan:
			w.execute(task)
		case <-w.quit:
			return
		case <-w.pool.ctx.Done():
			return
		}
	}
}

// execute runs task.Execute under a per-task timeout and recovers any
// panic raised by it, converting an uncaught fault into a failed task
// rather than crashing the worker goroutine.
func (w *worker) execute(task Task) {
	atomic.StoreInt64(&w.active, 1)
	atomic.AddInt64(&w.pool.activeTasks, 1)
	defer func() {
		atomic.StoreInt64(&w.active, 0)
		atomic.AddInt64(&w.pool.activeTasks, -1)
	}()

	start := time.Now()
	taskCtx, cancel := context.WithTimeout(w.pool.ctx, w.pool.config.TaskTimeout)
	defer cancel()

	err := w.runRecovered(taskCtx, task)
	duration := time.Since(start)

	if err != nil {
		atomic.AddInt64(&w.pool.failedTasks, 1)
		w.logger.WithFields(logrus.Fields{
			"worker_id": w.id,
			"task_id":   task.ID,
			"duration":  duration,
			"error":     err,
		}).Error("task failed")
		return
	}
	atomic.AddInt64(&w.pool.completedTasks, 1)
	w.logger.WithFields(logrus.Fields{
		"worker_id": w.id,
		"task_id":   task.ID,
		"duration":  duration,
	}).Debug("task completed")
}

func (w *worker) runRecovered(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.ID, r)
		}
	}()
	return task.Execute(ctx)
}

var ErrPoolNotRunning = fmt.Errorf("worker pool is not running")
