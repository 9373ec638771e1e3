package txn

import (
	"strings"
	"sync"

	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/ledger"
	"golang.org/x/sync/semaphore"
	"golang.org/x/xerrors"
)

// Guard allows at most one mutating operation in flight per identity. A second
// operation is refused with ErrBusy instead of being queued.
type Guard struct {
	sync.Mutex

	sems map[ledger.Address]*semaphore.Weighted
}

// NewGuard creates a new guard.
func NewGuard() *Guard {
	return &Guard{
		sems: make(map[ledger.Address]*semaphore.Weighted),
	}
}

// TryLock takes the slot of the identity, or returns ErrBusy if an operation
// is already in flight. The returned function releases the slot.
func (g *Guard) TryLock(addr ledger.Address) (unlock func(), err error) {
	g.Lock()
	key := ledger.Address(strings.ToLower(string(addr)))
	sem, found := g.sems[key]
	if !found {
		sem = semaphore.NewWeighted(1)
		g.sems[key] = sem
	}
	g.Unlock()

	if !sem.TryAcquire(1) {
		return nil, xerrors.Errorf("operation in flight for %s: %w", addr, core.ErrBusy)
	}

	once := sync.Once{}

	return func() { once.Do(func() { sem.Release(1) }) }, nil
}
