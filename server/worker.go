// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kbase/bdfs/manifest"
	"github.com/kbase/bdfs/sampler"
)

// a request to sample the share registered under a datastore
type samplingRequest struct {
	Id         uuid.UUID
	Path       string
	Generation int64
}

// This type samples registered shares one at a time on its own goroutine,
// storing each resulting manifest in the registry.
type samplingWorker struct {
	registry *registry
	options  sampler.Options
	// delay between sampling a share and storing its manifest
	delay time.Duration

	requests chan samplingRequest
	cancel   context.CancelFunc
	done     chan struct{}
}

func newSamplingWorker(reg *registry, options sampler.Options, delay time.Duration) *samplingWorker {
	return &samplingWorker{
		registry: reg,
		options:  options,
		delay:    delay,
		requests: make(chan samplingRequest, 32),
		done:     make(chan struct{}),
	}
}

// starts processing sampling requests
func (w *samplingWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.process(ctx)
}

// stops processing, abandoning any requests in flight, and waits for the
// worker's goroutine to exit
func (w *samplingWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
		w.cancel = nil
	}
}

// queues the share registered under the given record for sampling
func (w *samplingWorker) Enqueue(ctx context.Context, rec record) error {
	req := samplingRequest{
		Id:         rec.Id,
		Path:       rec.Path,
		Generation: rec.Generation,
	}
	select {
	case w.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *samplingWorker) process(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case req := <-w.requests:
			if !w.current(req) {
				continue
			}
			m := w.sample(ctx, req)
			if w.delay > 0 {
				select {
				case <-time.After(w.delay):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
			stored, err := w.registry.SetManifest(req.Id, req.Generation, m)
			if err != nil {
				slog.Error(fmt.Sprintf("Couldn't store manifest for datastore %s: %s",
					req.Id.String(), err.Error()))
			} else if !stored {
				slog.Info(fmt.Sprintf("Discarded superseded manifest for datastore %s",
					req.Id.String()))
			}
		case <-ctx.Done():
			return
		}
	}
}

// returns true if the given request is the latest one for a datastore that
// is still registered
func (w *samplingWorker) current(req samplingRequest) bool {
	rec, err := w.registry.Get(req.Id)
	if err != nil {
		slog.Debug(fmt.Sprintf("Skipping sampling for datastore %s: %s",
			req.Id.String(), err.Error()))
		return false
	}
	return rec.Generation == req.Generation
}

// samples the share for the given request, returning a ready manifest or a
// failed one describing what went wrong
func (w *samplingWorker) sample(ctx context.Context, req samplingRequest) manifest.Manifest {
	slog.Info(fmt.Sprintf("Sampling datastore %s (%s)...", req.Id.String(), req.Path))
	share, err := sampler.OpenShare(req.Path)
	if err != nil {
		return failedManifest(req, err)
	}
	defer share.Close()
	datasets, err := sampler.Sample(ctx, share, w.options)
	if err != nil {
		return failedManifest(req, err)
	}
	m := manifest.Manifest{
		Status:   manifest.StatusReady,
		Datasets: datasets,
	}
	if err := m.Validate(); err != nil {
		return failedManifest(req, err)
	}
	slog.Info(fmt.Sprintf("Datastore %s: found %d dataset(s)", req.Id.String(), len(datasets)))
	return m
}

func failedManifest(req samplingRequest, err error) manifest.Manifest {
	slog.Info(fmt.Sprintf("Couldn't sample datastore %s: %s", req.Id.String(), err.Error()))
	return manifest.Manifest{
		Status:   manifest.StatusFailed,
		Message:  err.Error(),
		Datasets: []manifest.Dataset{},
	}
}
