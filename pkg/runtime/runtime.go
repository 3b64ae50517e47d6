// Package runtime implements the Device Runtime Facade: the public
// surface an embedding application calls (init/stop/call/callAsync/
// updateRequirements), per spec.md §4.I. It owns the call queue, the
// sync rendezvous, and the supervisor's thread of control, wired
// together the way oklog/run.Group coordinates cooperative actors.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/run"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/callqueue"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cognitconfig"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/metrics"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/rendezvous"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/scheduling"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/supervisor"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/uploadcache"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

// Runtime is the device runtime facade. Construct one per embedding
// application; Init/Stop may be called repeatedly across its
// lifetime, but only one supervisor runs at a time.
type Runtime struct {
	cfg      *cognitconfig.Config
	registry *faas.Registry
	metrics  *metrics.Metrics

	mu      sync.Mutex
	running bool
	sup     *supervisor.Supervisor
	queue   *callqueue.Queue
	rendez  *rendezvous.Rendezvous
	cancel  context.CancelFunc
}

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithMetrics attaches a prometheus instrumentation bundle.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// New creates a facade bound to cfg's control-plane credentials, using
// registry to resolve FunctionID to Callable on every call.
func New(cfg *cognitconfig.Config, registry *faas.Registry, opts ...Option) *Runtime {
	r := &Runtime{cfg: cfg, registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init validates requirements and starts the supervisor on its own
// thread of control. It rejects a call while already running.
func (r *Runtime) Init(requirements scheduling.Requirements) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return util.NewValidationError("runtime already initialized")
	}
	if err := requirements.Validate(); err != nil {
		return err
	}

	r.queue = callqueue.New(r.cfg.QueueCapacity)
	r.rendez = rendezvous.New()

	r.sup = supervisor.New(supervisor.Config{
		Endpoint:           r.cfg.Endpoint,
		Username:           r.cfg.Username,
		Password:           r.cfg.Password,
		TickInterval:       time.Duration(r.cfg.TickIntervalMS) * time.Millisecond,
		LatencyProbePeriod: time.Duration(r.cfg.LatencyProbePeriodMS) * time.Millisecond,
		Requirements:       requirements,
		Registry:           r.registry,
		Uploads:            uploadcache.New(),
		Queue:              r.queue,
		Rendezvous:         r.rendez,
		Metrics:            r.metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	var g run.Group
	g.Add(func() error {
		r.sup.Run(ctx)
		return nil
	}, func(error) {
		r.sup.Stop()
		cancel()
	})
	go g.Run()

	r.running = true
	util.Info("device runtime initialized")
	return nil
}

// Stop signals the supervisor to exit, waits for it to do so, and
// discards anything left in the call queue.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return util.NewValidationError("runtime is not running")
	}

	r.sup.Stop()
	r.cancel()
	<-r.sup.Done()

	dropped := r.queue.Drain()
	for _, call := range dropped {
		util.WithCall(call.ID).Warn("call discarded: runtime stopped before it was served")
	}

	r.running = false
	r.sup = nil
	r.queue = nil
	r.rendez = nil
	util.Infof("device runtime stopped, %d queued call(s) discarded", len(dropped))
	return nil
}

// Call builds a synchronous Call for functionID, enqueues it, and
// blocks on the sync rendezvous until the supervisor delivers a
// result. If the queue is full it returns an ExecResponse with
// RetCode=ERROR immediately instead of blocking.
func (r *Runtime) Call(functionID string, params []string, timeout time.Duration) faas.ExecResponse {
	r.mu.Lock()
	running := r.running
	queue, rendez := r.queue, r.rendez
	r.mu.Unlock()

	if !running {
		return faas.ExecResponse{RetCode: faas.RetError, Err: "runtime is not running"}
	}

	call := faas.Call{
		ID:         newCallID(),
		FunctionID: functionID,
		Mode:       faas.ModeSync,
		Params:     params,
		Timeout:    timeout,
	}

	if !queue.Enqueue(call) {
		err := util.NewCapacityError(queue.Capacity())
		return faas.ExecResponse{RetCode: faas.RetError, Err: err.Error()}
	}
	return rendez.Take()
}

// CallAsync builds an asynchronous Call for functionID, enqueues it,
// and returns whether the enqueue succeeded. callback is invoked by
// the supervisor's own thread of control once the fabric replies.
func (r *Runtime) CallAsync(functionID string, callback faas.Callback, params []string) bool {
	r.mu.Lock()
	running := r.running
	queue := r.queue
	r.mu.Unlock()

	if !running {
		return false
	}

	call := faas.Call{
		ID:         newCallID(),
		FunctionID: functionID,
		Mode:       faas.ModeAsync,
		Callback:   callback,
		Params:     params,
	}
	return queue.Enqueue(call)
}

// UpdateRequirements stages a placement-requirements change for the
// supervisor to pick up on its next guard evaluation.
func (r *Runtime) UpdateRequirements(requirements scheduling.Requirements) error {
	r.mu.Lock()
	sup, running := r.sup, r.running
	r.mu.Unlock()

	if !running {
		return util.NewValidationError("runtime is not running")
	}
	return sup.UpdateRequirements(requirements)
}

// Running reports whether the supervisor is currently active.
func (r *Runtime) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// State returns the supervisor's current SSM state, or "" if the
// runtime is not running.
func (r *Runtime) State() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sup == nil {
		return ""
	}
	return string(r.sup.State())
}

// ClusterEndpoint returns the edge cluster endpoint currently selected by
// the supervisor, or "" if none has been selected yet (or the runtime is
// not running).
func (r *Runtime) ClusterEndpoint() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sup == nil {
		return ""
	}
	return r.sup.ClusterEndpoint()
}

var callSeq int64
var callSeqMu sync.Mutex

func newCallID() string {
	callSeqMu.Lock()
	callSeq++
	id := callSeq
	callSeqMu.Unlock()
	return fmt.Sprintf("call-%d-%d", time.Now().UnixNano(), id)
}
