/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package attach

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of queued work. ctx is canceled once any task fails.
type Task func(ctx context.Context) error

// DefaultLimit is half the CPUs, at least one.
func DefaultLimit() int {
	return max(runtime.NumCPU()/2, 1)
}

// Queue runs tasks with at most limit in flight. Submit never blocks;
// queued tasks start in submission order as slots free up.
type Queue struct {
	group *errgroup.Group
	ctx   context.Context
	limit int

	mu      sync.Mutex
	pending []Task
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewQueue starts a queue. A limit below one selects DefaultLimit.
func NewQueue(ctx context.Context, limit int) *Queue {
	if limit < 1 {
		limit = DefaultLimit()
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	q := &Queue{
		group: group,
		ctx:   gctx,
		limit: limit,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	go q.dispatch()

	return q
}

func (q *Queue) Limit() int { return q.limit }

// Submit queues task. It fails once Wait was called.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.pending = append(q.pending, task)
	q.signal()

	return nil
}

// Pending counts queued tasks not yet handed to the group.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Wait closes the queue, runs what is queued and returns the first error.
func (q *Queue) Wait() error {
	q.mu.Lock()
	q.closed = true
	q.signal()
	q.mu.Unlock()

	<-q.done

	return q.group.Wait()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// dispatch hands tasks to the group one at a time; group.Go blocks while
// every slot is busy, which keeps starts in order.
func (q *Queue) dispatch() {
	defer close(q.done)

	for {
		q.mu.Lock()

		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()

			if closed {
				return
			}

			<-q.wake

			continue
		}

		task := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.group.Go(func() error { return task(q.ctx) })
	}
}
