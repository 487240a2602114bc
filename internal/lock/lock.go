// Package lock serializes writes per tournament. Each tournament gets a weighted
// semaphore: shared holders take one unit and exclusive holders take all of
// them, so check-ins run side by side while bracket generation excludes
// everything else. Waiters are served in FIFO order and give up after the
// registry timeout instead of queueing forever.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when the tournament could not be acquired within the timeout.
var ErrBusy = errors.New("tournament is busy")

const DefaultTimeout = 2 * time.Second

// Capacity bounds how many shared holders can run at once.
const Capacity = 64

type Registry struct {
	timeout time.Duration

	mu   sync.Mutex
	sems map[uuid.UUID]*semaphore.Weighted
}

func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		timeout: timeout,
		sems:    make(map[uuid.UUID]*semaphore.Weighted),
	}
}

type Release func()

func (r *Registry) Shared(ctx context.Context, tournamentID uuid.UUID) (Release, error) {
	return r.acquire(ctx, tournamentID, 1)
}

func (r *Registry) Exclusive(ctx context.Context, tournamentID uuid.UUID) (Release, error) {
	return r.acquire(ctx, tournamentID, Capacity)
}

func (r *Registry) acquire(ctx context.Context, tournamentID uuid.UUID, weight int64) (Release, error) {
	sem := r.get(tournamentID)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := sem.Acquire(ctx, weight); err != nil {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() { sem.Release(weight) })
	}, nil
}

func (r *Registry) get(tournamentID uuid.UUID) *semaphore.Weighted {
	r.mu.Lock()
	defer r.mu.Unlock()

	sem, ok := r.sems[tournamentID]
	if !ok {
		sem = semaphore.NewWeighted(Capacity)
		r.sems[tournamentID] = sem
	}
	return sem
}

// Forget drops the semaphore of a deleted tournament. Late waiters on the old
// semaphore still run and find the tournament gone.
func (r *Registry) Forget(tournamentID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sems, tournamentID)
}
