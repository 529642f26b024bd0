// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package downloader

import (
	"context"
	"sync"
	"sync/atomic"
)

// Task is a unit of work run by a WorkerPool
type Task func(ctx context.Context)

// WorkerPool runs tasks received on its input channel with a fixed number of
// workers
type WorkerPool struct {
	numWorkers int
	input      <-chan Task
	wg         sync.WaitGroup
	started    atomic.Bool
}

// WorkerPoolConfig holds configuration for creating a WorkerPool.
type WorkerPoolConfig struct {
	// NumWorkers is the number of parallel workers; defaults to 1 if <= 0.
	NumWorkers int
	// Input is the channel to receive tasks from.
	Input <-chan Task
}

// NewWorkerPool creates a new worker pool.
//
// Note: If the input channel is nil, workers will block until the context
// passed to Start is done.
func NewWorkerPool(config WorkerPoolConfig) *WorkerPool {
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		input:      config.Input,
	}
}

// Start starts the worker pool. Call Stop to wait for completion.
// This method is idempotent - calling it multiple times has no effect.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started.Swap(true) {
		return // Already started
	}
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Stop waits for all workers to complete.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.input:
			if !ok {
				return
			}
			task(ctx)
		}
	}
}

// runTasks runs the tasks in order on a pool of numWorkers workers and waits
// for them to finish. Tasks not yet started when ctx is done are skipped
func runTasks(ctx context.Context, numWorkers int, tasks []Task) {
	if len(tasks) == 0 {
		return
	}
	input := make(chan Task)
	pool := NewWorkerPool(
		WorkerPoolConfig{
			NumWorkers: min(numWorkers, len(tasks)),
			Input:      input,
		},
	)
	pool.Start(ctx)
	defer pool.Stop()
	defer close(input)
	for _, task := range tasks {
		select {
		case input <- task:
		case <-ctx.Done():
			return
		}
	}
}
