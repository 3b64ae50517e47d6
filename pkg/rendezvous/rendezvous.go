// Package rendezvous implements the single-slot hand-off used to
// deliver the result of a synchronous call back to the blocked
// application thread.
package rendezvous

import (
	"sync"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
)

// Rendezvous is a single-slot, mutex-and-condition-variable hand-off.
// At most one result may be in flight at a time; the facade is
// responsible for serializing callers onto Take.
type Rendezvous struct {
	mu     sync.Mutex
	cond   *sync.Cond
	full   bool
	result faas.ExecResponse
}

// New creates an empty rendezvous.
func New() *Rendezvous {
	r := &Rendezvous{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Put stores result in the slot and wakes any waiter. It returns false
// without modifying the slot if it is already full — a protocol bug
// in the caller (the supervisor should never have two results in
// flight at once).
func (r *Rendezvous) Put(result faas.ExecResponse) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.result = result
	r.full = true
	r.cond.Signal()
	return true
}

// Take blocks while the slot is empty, then clears and returns it.
func (r *Rendezvous) Take() faas.ExecResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	for !r.full {
		r.cond.Wait()
	}
	result := r.result
	r.full = false
	r.result = faas.ExecResponse{}
	return result
}
