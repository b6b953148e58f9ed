package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// WatchPool polls the scheduler for every active job on a fixed interval
// and records state changes. Each tick fans the active jobs out to
// workerCount goroutines.
type WatchPool struct {
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	workerCount int
	interval    time.Duration
	pidFile     string
	jobs        chan *Job
	stopped     chan struct{}
	clusters    clusterSet
	clustersMu  sync.Mutex
}

var (
	watchPoolMutex  sync.Mutex
	globalWatchPool *WatchPool
)

func NewWatchPool(workerCount int, interval time.Duration) *WatchPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WatchPool{
		ctx:         ctx,
		cancel:      cancel,
		workerCount: workerCount,
		interval:    interval,
		pidFile:     filepath.Join(dataDir, "watch.pid"),
		jobs:        make(chan *Job),
		stopped:     make(chan struct{}),
		clusters:    make(clusterSet),
	}
}

func (wp *WatchPool) Start() error {
	watchPoolMutex.Lock()
	defer watchPoolMutex.Unlock()

	if globalWatchPool != nil {
		return fmt.Errorf("watchers are already running")
	}
	pid := os.Getpid()
	if err := os.WriteFile(wp.pidFile, []byte(fmt.Sprintf("%d\n%d\n", pid, wp.workerCount)), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	globalWatchPool = wp

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.workerLoop(fmt.Sprintf("watcher-%d", i+1))
	}
	wp.wg.Add(1)
	go wp.dispatchLoop()

	log.Printf("Started %d watchers (PID: %d, interval: %v)", wp.workerCount, pid, wp.interval)
	return nil
}

// HandleSignals stops the pool on SIGINT or SIGTERM.
func (wp *WatchPool) HandleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Println("Received shutdown signal, stopping watchers...")
			wp.Stop()
		case <-wp.ctx.Done():
		}
		signal.Stop(sigChan)
	}()
}

// Wait blocks until Stop has finished.
func (wp *WatchPool) Wait() {
	<-wp.stopped
}

func (wp *WatchPool) Stop() error {
	watchPoolMutex.Lock()
	defer watchPoolMutex.Unlock()

	if globalWatchPool != wp {
		return fmt.Errorf("no watchers are running")
	}
	log.Println("Stopping watchers...")

	wp.cancel()
	wp.wg.Wait()

	if err := os.Remove(wp.pidFile); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to remove PID file: %v", err)
	}

	globalWatchPool = nil
	close(wp.stopped)
	log.Println("All watchers stopped")
	return nil
}

func (wp *WatchPool) dispatchLoop() {
	defer wp.wg.Done()
	defer close(wp.jobs)

	ticker := time.NewTicker(wp.interval)
	defer ticker.Stop()

	for {
		wp.dispatch()
		select {
		case <-wp.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (wp *WatchPool) dispatch() {
	jobs, err := GetActiveJobs()
	if err != nil {
		log.Printf("[dispatch] Error getting active jobs: %v", err)
		return
	}
	for _, job := range jobs {
		select {
		case wp.jobs <- job:
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WatchPool) workerLoop(workerID string) {
	defer wp.wg.Done()
	log.Printf("[%s] Started", workerID)

	for job := range wp.jobs {
		wp.clustersMu.Lock()
		c, err := wp.clusters.get(job.Cluster)
		wp.clustersMu.Unlock()
		if err != nil {
			log.Printf("[%s] Job %d: %v", workerID, job.ID, err)
			continue
		}

		ctx, cancel := context.WithTimeout(wp.ctx, time.Minute)
		state, err := refreshJob(ctx, c, job)
		cancel()
		if err != nil {
			log.Printf("[%s] Job %d (%s): %v", workerID, job.ID, job.RemoteID, err)
			continue
		}
		if state.Terminal() {
			log.Printf("[%s] Job %d finished: %s", workerID, job.ID, state)
		}
	}
	log.Printf("[%s] Shutting down...", workerID)
}

func IsWatchRunning() bool {
	watchPoolMutex.Lock()
	defer watchPoolMutex.Unlock()
	return globalWatchPool != nil
}
