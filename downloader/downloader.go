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

// Package downloader drives batches of attachments through download rounds.
//
// A round moves through the states ResolvingPeerAddresses,
// AwaitingInventoryResponses, AwaitingAttachmentResponses and RoundComplete.
// Batches wait in a priority queue between rounds and a batch is never in two
// rounds at once. Request outcomes update the shared peer.Tracker.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/atlas/attachment"
	"github.com/blinklabs-io/atlas/download"
	"github.com/blinklabs-io/atlas/peer"
)

var (
	ErrNilTracker        = errors.New("peer tracker must not be nil")
	ErrNilTransport      = errors.New("transport must not be nil")
	ErrNilBatch          = errors.New("batch must not be nil")
	ErrAlreadyRunning    = errors.New("downloader is already running")
	ErrRetriesExhausted  = errors.New("batch retries exhausted")
	ErrDownloaderStopped = errors.New("downloader stopped")
	ErrNoResponse        = errors.New("peer returned no response")
	ErrHashMismatch      = errors.New("attachment content does not match its hash")
)

// RoundResult summarizes a download round
type RoundResult struct {
	States             []State
	PeersResolved      int
	PeersUnresolved    int
	InventoryRequests  int
	AttachmentRequests int
	Deferred           int
	Resolved           int
}

type roundOutcome struct {
	batch *download.AttachmentsBatch
	err   error
}

// Downloader fetches the attachments of queued batches from the peers known
// to its tracker
type Downloader struct {
	config    Config
	tracker   *peer.Tracker
	transport Transport
	resolver  Resolver
	logger    *slog.Logger
	metrics   *Metrics
	running   atomic.Bool

	// Batches waiting to enter the queue owned by Run
	intake      []*download.AttachmentsBatch
	intakeMutex sync.Mutex
	intakeChan  chan struct{}
}

// New returns a Downloader with the specified options
func New(tracker *peer.Tracker, transport Transport, opts ...OptionFunc) (*Downloader, error) {
	if tracker == nil {
		return nil, ErrNilTracker
	}
	if transport == nil {
		return nil, ErrNilTransport
	}
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.MaxConcurrentBatches <= 0 {
		config.MaxConcurrentBatches = DefaultMaxConcurrentBatches
	}
	d := &Downloader{
		config:     config,
		tracker:    tracker,
		transport:  transport,
		logger:     config.Logger,
		metrics:    NewMetrics(),
		intakeChan: make(chan struct{}, 1),
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.resolver = config.Resolver
	if d.resolver == nil {
		d.resolver = NewNetResolver(nil)
	}
	if config.DNSCacheSize > 0 && config.DNSCacheTTL > 0 {
		cached, err := NewCachingResolver(d.resolver, config.DNSCacheSize, config.DNSCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("create DNS cache: %w", err)
		}
		d.resolver = cached
	}
	return d, nil
}

func (d *Downloader) Metrics() *Metrics {
	return d.metrics
}

// Enqueue hands a batch to the downloader. The batch must not be modified by
// the caller afterwards
func (d *Downloader) Enqueue(batch *download.AttachmentsBatch) error {
	if batch == nil {
		return ErrNilBatch
	}
	d.intakeMutex.Lock()
	d.intake = append(d.intake, batch)
	d.intakeMutex.Unlock()
	select {
	case d.intakeChan <- struct{}{}:
	default:
	}
	return nil
}

func (d *Downloader) takeIntake() []*download.AttachmentsBatch {
	d.intakeMutex.Lock()
	defer d.intakeMutex.Unlock()
	ret := d.intake
	d.intake = nil
	return ret
}

// Run schedules rounds for queued batches until ctx is done. Batches still
// pending on return are reported to OnBatchAbandoned with ErrDownloaderStopped
func (d *Downloader) Run(ctx context.Context) error {
	if d.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)
	d.logger.Info(
		"starting downloader",
		"component", "atlas",
		"subsystem", "downloader",
		"max_concurrent_batches", d.config.MaxConcurrentBatches,
	)
	queue := download.NewBatchQueue()
	doneChan := make(chan roundOutcome)
	waiting := make(map[*download.AttachmentsBatch]*time.Timer)
	// Timers hand batches back to the intake once their backoff elapses
	requeueChan := make(chan *download.AttachmentsBatch)
	active := 0
	for {
		if ctx.Err() != nil {
			return d.shutdown(ctx, queue, waiting, doneChan, active)
		}
		for _, batch := range d.takeIntake() {
			queue.Push(batch)
		}
		for active < d.config.MaxConcurrentBatches && queue.Len() > 0 {
			batch, _ := queue.Pop()
			if batch.HasFullySucceeded() {
				d.completeBatch(batch)
				continue
			}
			active++
			go func() {
				_, err := d.RunRound(ctx, batch)
				doneChan <- roundOutcome{batch: batch, err: err}
			}()
		}
		d.metrics.UpdateQueueDepth(queue.Len())
		select {
		case <-ctx.Done():
			return d.shutdown(ctx, queue, waiting, doneChan, active)
		case <-d.intakeChan:
		case batch := <-requeueChan:
			delete(waiting, batch)
			queue.Push(batch)
		case outcome := <-doneChan:
			active--
			if outcome.err != nil {
				if ctx.Err() == nil {
					d.abandonBatch(outcome.batch, outcome.err)
					continue
				}
				// Cancelled round
				queue.Push(outcome.batch)
				continue
			}
			d.finishRound(ctx, outcome.batch, queue, waiting, requeueChan)
		}
	}
}

func (d *Downloader) finishRound(
	ctx context.Context,
	batch *download.AttachmentsBatch,
	queue *download.BatchQueue,
	waiting map[*download.AttachmentsBatch]*time.Timer,
	requeueChan chan *download.AttachmentsBatch,
) {
	if d.settleBatch(batch) {
		return
	}
	backoff := d.config.RetryBackoff * time.Duration(batch.RetryCount())
	if backoff <= 0 {
		queue.Push(batch)
		return
	}
	d.logger.Debug(
		"delaying batch",
		"component", "atlas",
		"subsystem", "downloader",
		"batch", batch.String(),
		"backoff", backoff,
	)
	waiting[batch] = time.AfterFunc(backoff, func() {
		select {
		case requeueChan <- batch:
		case <-ctx.Done():
		}
	})
}

// settleBatch reports a batch that is complete or out of retries and returns
// true if it did
func (d *Downloader) settleBatch(batch *download.AttachmentsBatch) bool {
	switch {
	case batch.HasFullySucceeded():
		d.completeBatch(batch)
	case batch.RetryCount() > d.config.MaxRetries:
		d.abandonBatch(batch, ErrRetriesExhausted)
	default:
		return false
	}
	return true
}

func (d *Downloader) shutdown(
	ctx context.Context,
	queue *download.BatchQueue,
	waiting map[*download.AttachmentsBatch]*time.Timer,
	doneChan chan roundOutcome,
	active int,
) error {
	// Rounds that finished still count as finished
	for ; active > 0; active-- {
		outcome := <-doneChan
		if outcome.err == nil && d.settleBatch(outcome.batch) {
			continue
		}
		queue.Push(outcome.batch)
	}
	for batch, timer := range waiting {
		timer.Stop()
		queue.Push(batch)
	}
	for _, batch := range d.takeIntake() {
		queue.Push(batch)
	}
	stopErr := fmt.Errorf("%w: %w", ErrDownloaderStopped, ctx.Err())
	for _, batch := range queue.Drain() {
		if batch.HasFullySucceeded() {
			d.completeBatch(batch)
			continue
		}
		d.abandonBatch(batch, stopErr)
	}
	d.metrics.UpdateQueueDepth(0)
	d.logger.Info(
		"stopped downloader",
		"component", "atlas",
		"subsystem", "downloader",
	)
	return ctx.Err()
}

func (d *Downloader) completeBatch(batch *download.AttachmentsBatch) {
	d.metrics.RecordBatchCompleted()
	d.logger.Debug(
		"batch completed",
		"component", "atlas",
		"subsystem", "downloader",
		"batch", batch.String(),
	)
	if d.config.OnBatchCompleted != nil {
		d.config.OnBatchCompleted(batch)
	}
}

func (d *Downloader) abandonBatch(batch *download.AttachmentsBatch, err error) {
	d.metrics.RecordBatchAbandoned()
	d.logger.Warn(
		"batch abandoned",
		"component", "atlas",
		"subsystem", "downloader",
		"batch", batch.String(),
		"error", err,
	)
	if d.config.OnBatchAbandoned != nil {
		d.config.OnBatchAbandoned(batch, err)
	}
}

// RunRound runs a single download round for the batch. The retry count of the
// batch is bumped when the round resolves nothing. An error is returned when
// ctx is done before the round completes or when the round state cannot be
// built
func (d *Downloader) RunRound(ctx context.Context, batch *download.AttachmentsBatch) (*RoundResult, error) {
	if batch == nil {
		return nil, ErrNilBatch
	}
	d.metrics.RecordRound()
	state := newRoundState()
	result := &RoundResult{}
	defer func() {
		result.States = slices.Clone(state.visited)
	}()

	// Unbound slots refer to empty content and need no peer
	emptyHash := attachment.EmptyAttachmentHash()
	for _, instance := range batch.UnresolvedInstances() {
		if instance.ContentHash != emptyHash || !batch.ResolveAttachment(emptyHash) {
			continue
		}
		result.Resolved++
		d.metrics.RecordAttachmentResolved()
		if d.config.OnAttachment != nil {
			d.config.OnAttachment(batch, attachment.NewAttachment(nil))
		}
	}

	// Unresolvable peers are left out of the round
	reports := d.tracker.Snapshot()
	resolved := d.resolvePeers(ctx, reports)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	result.PeersResolved = len(resolved)
	result.PeersUnresolved = len(reports) - len(resolved)
	candidates := make(map[string]download.ReliabilityReport, len(resolved))
	for url := range resolved {
		candidates[url] = reports[url]
	}
	stateCtx := download.NewAttachmentsBatchStateContext(
		batch,
		candidates,
		d.config.ConnectionOptions,
	)

	if err := state.transition(StateAwaitingInventoryResponses); err != nil {
		return result, err
	}
	inventoryRequests := stateCtx.PrioritizedInventoryRequests().Drain()
	result.InventoryRequests = len(inventoryRequests)
	inventories := d.fetchInventories(ctx, inventoryRequests, resolved)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	// Merge only once every response or timeout has been collected
	stateCtx, err := stateCtx.ExtendWithInventories(inventories)
	if err != nil {
		return result, err
	}

	if err := state.transition(StateAwaitingAttachmentResponses); err != nil {
		return result, err
	}
	var attachmentRequests []*download.AttachmentRequest
	for _, req := range stateCtx.PrioritizedAttachmentRequests().Drain() {
		if len(req.Sources) == 0 {
			d.metrics.RecordAttachmentDeferred()
			result.Deferred++
			continue
		}
		attachmentRequests = append(attachmentRequests, req)
	}
	result.AttachmentRequests = len(attachmentRequests)
	contents := d.fetchAttachments(ctx, attachmentRequests, resolved)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := state.transition(StateRoundComplete); err != nil {
		return result, err
	}
	for _, req := range attachmentRequests {
		entry, ok := contents.Succeeded[req.Key()]
		if !ok {
			continue
		}
		for _, url := range slices.Sorted(maps.Keys(entry.Responses)) {
			content := entry.Responses[url]
			if content == nil {
				continue
			}
			if batch.ResolveAttachment(req.ContentHash) {
				result.Resolved++
				d.metrics.RecordAttachmentResolved()
				if d.config.OnAttachment != nil {
					d.config.OnAttachment(batch, content)
				}
			}
			break
		}
	}
	if result.Resolved == 0 && !batch.HasFullySucceeded() {
		batch.BumpRetryCount()
	}
	d.logger.Debug(
		"round complete",
		"component", "atlas",
		"subsystem", "downloader",
		"batch", batch.String(),
		"resolved", result.Resolved,
		"deferred", result.Deferred,
		"peers_unresolved", result.PeersUnresolved,
	)
	return result, nil
}

func (d *Downloader) resolvePeers(
	ctx context.Context,
	peers map[string]download.ReliabilityReport,
) map[string]ResolvedPeer {
	ret := make(map[string]ResolvedPeer, len(peers))
	var mutex sync.Mutex
	tasks := make([]Task, 0, len(peers))
	for _, url := range slices.Sorted(maps.Keys(peers)) {
		tasks = append(tasks, func(ctx context.Context) {
			lookupCtx, cancel := withOptionalTimeout(ctx, d.config.ConnectionOptions.DNSTimeout)
			defer cancel()
			resolvedPeer, err := d.resolver.Resolve(lookupCtx, url)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				d.metrics.RecordPeerUnresolved()
				d.logger.Debug(
					"dropping unresolvable peer from round",
					"component", "atlas",
					"subsystem", "downloader",
					"peer", url,
					"error", err,
				)
				return
			}
			mutex.Lock()
			ret[url] = resolvedPeer
			mutex.Unlock()
		})
	}
	runTasks(ctx, d.config.ConnectionOptions.MaxConcurrentRequests, tasks)
	return ret
}

func (d *Downloader) fetchInventories(
	ctx context.Context,
	requests []*download.AttachmentsInventoryRequest,
	resolved map[string]ResolvedPeer,
) *download.InventoryResults {
	results := download.NewInventoryResults()
	tasks := make([]Task, 0, len(requests))
	for _, req := range requests {
		target, ok := resolved[req.URL]
		if !ok {
			continue
		}
		tasks = append(tasks, func(ctx context.Context) {
			reqCtx, cancel := d.requestContext(ctx)
			defer cancel()
			resp, err := d.transport.GetAttachmentsInventory(reqCtx, target, req)
			if err == nil && resp == nil {
				err = ErrNoResponse
			}
			if err != nil && ctx.Err() != nil {
				// Round cancelled
				return
			}
			d.metrics.RecordInventoryRequest(err)
			if err != nil {
				d.logger.Debug(
					"inventory request failed",
					"component", "atlas",
					"subsystem", "downloader",
					"peer", req.URL,
					"path", req.RequestPath(),
					"error", err,
				)
				d.tracker.RecordFailure(req.URL)
				results.AddFailure(req, req.URL, err)
				return
			}
			d.tracker.RecordSuccess(req.URL)
			results.AddResponse(req, req.URL, resp)
		})
	}
	runTasks(ctx, d.config.ConnectionOptions.MaxConcurrentRequests, tasks)
	return results
}

func (d *Downloader) fetchAttachments(
	ctx context.Context,
	requests []*download.AttachmentRequest,
	resolved map[string]ResolvedPeer,
) *download.AttachmentResults {
	results := download.NewAttachmentResults()
	tasks := make([]Task, 0, len(requests))
	for _, req := range requests {
		tasks = append(tasks, func(ctx context.Context) {
			// Sources are tried best first until one serves valid content
			for _, url := range req.SortedSources() {
				target, ok := resolved[url]
				if !ok {
					continue
				}
				content, err := d.fetchAttachment(ctx, target, req)
				if err != nil && ctx.Err() != nil {
					return
				}
				d.metrics.RecordAttachmentRequest(err)
				if err != nil {
					d.logger.Debug(
						"attachment request failed",
						"component", "atlas",
						"subsystem", "downloader",
						"peer", url,
						"path", req.RequestPath(),
						"error", err,
					)
					d.tracker.RecordFailure(url)
					results.AddFailure(req, url, err)
					continue
				}
				d.tracker.RecordSuccess(url)
				results.AddResponse(req, url, content)
				return
			}
		})
	}
	runTasks(ctx, d.config.ConnectionOptions.MaxConcurrentRequests, tasks)
	return results
}

func (d *Downloader) fetchAttachment(
	ctx context.Context,
	target ResolvedPeer,
	req *download.AttachmentRequest,
) (*attachment.Attachment, error) {
	reqCtx, cancel := d.requestContext(ctx)
	defer cancel()
	content, err := d.transport.GetAttachment(reqCtx, target, req)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, ErrNoResponse
	}
	if hash := content.Hash(); hash != req.ContentHash {
		return nil, fmt.Errorf(
			"%w: expected %s, got %s",
			ErrHashMismatch,
			req.ContentHash,
			hash,
		)
	}
	return content, nil
}

func (d *Downloader) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withOptionalTimeout(ctx, d.config.ConnectionOptions.RequestTimeout)
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
