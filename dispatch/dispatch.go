// Copyright © 2024 The gatbcore Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package dispatch implements the work dispatcher described in the
// specification §4.7: a fixed pool of worker goroutines that runs a list
// of tasks, captures per-worker failures, and composes them into a single
// error after join. It also exposes a cooperative Synchronizer and a
// token-based CancelToken, mirroring GATB's IThread/ISynchronizer
// contract (original_source/gatb-core/src/gatb/system/api/IThread.hpp)
// the way LexicMap drives its own worker pools with sync.Pool and
// runtime.GOMAXPROCS (lexicmap/index/index.go).
package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/gatb-go/gatbcore/gatberr"
)

// Task is one unit of dispatched work. It receives the cancellation token
// so it can check it at natural boundaries (spec.md §4.7).
type Task func(tok *CancelToken) error

// CancelToken is a cooperative cancellation flag. Cancellation is
// advisory: a cancelled run still flushes in-flight buffers, per
// spec.md §5.
type CancelToken struct {
	flag atomic.Bool
}

// Cancel requests cancellation. Safe to call from any goroutine.
func (t *CancelToken) Cancel() { t.flag.Store(true) }

// Cancelled reports whether cancellation was requested.
func (t *CancelToken) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.flag.Load()
}

// Synchronizer is a cooperative mutex-equivalent tasks use to guard shared
// state, exposed so callers do not need to reach for sync.Mutex directly
// (mirrors ISynchronizer in IThread.hpp).
type Synchronizer struct {
	mu sync.Mutex
}

// Lock acquires the synchronizer.
func (s *Synchronizer) Lock() { s.mu.Lock() }

// Unlock releases the synchronizer.
func (s *Synchronizer) Unlock() { s.mu.Unlock() }

// NewSynchronizer builds a new cooperative synchronizer.
func NewSynchronizer() *Synchronizer { return &Synchronizer{} }

// Run executes tasks on up to nbCores worker goroutines. The number of
// workers is min(nbCores, len(tasks)), per spec.md §5. Any task error is
// captured per-worker; after every task has been dispatched and every
// worker has drained its current unit, a composite error is returned if
// any worker failed (spec.md §4.7, §7).
func Run(tasks []Task, nbCores int, tok *CancelToken) error {
	if len(tasks) == 0 {
		return nil
	}
	if nbCores <= 0 {
		nbCores = 1
	}
	workers := nbCores
	if workers > len(tasks) {
		workers = len(tasks)
	}

	if tok == nil {
		tok = &CancelToken{}
	}

	taskCh := make(chan Task)
	var wg sync.WaitGroup
	var mu sync.Mutex
	merr := &gatberr.MultiError{}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for t := range taskCh {
				if err := t(tok); err != nil {
					mu.Lock()
					merr.Add(err)
					mu.Unlock()
				}
			}
		}()
	}

	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	wg.Wait()

	return merr.ErrOrNil()
}

// RunIndexed is a convenience wrapper around Run for the common case of
// dispatching one task per partition index in [0, n).
func RunIndexed(n int, nbCores int, tok *CancelToken, fn func(i int, tok *CancelToken) error) error {
	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		idx := i
		tasks[idx] = func(tok *CancelToken) error { return fn(idx, tok) }
	}
	return Run(tasks, nbCores, tok)
}
