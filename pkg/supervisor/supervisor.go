// Package supervisor implements the Supervisor State Machine: the
// single thread of control that authenticates, registers placement
// requirements, selects an active cluster, and drains the call queue
// against it, per spec.md §4.H.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/audit"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/callqueue"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/cognitclient"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/edgeclient"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/latency"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/metrics"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/rendezvous"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/scheduling"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/uploadcache"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

// State is one of the SSM's four states.
type State string

const (
	StateInit     State = "INIT"
	StateRegister State = "REGISTER"
	StateSelect   State = "SELECT"
	StateServe    State = "SERVE"
)

// retryBound is the attempt ceiling for REGISTER and SELECT before
// falling back to INIT.
const retryBound = 3

// DefaultTickInterval is the SSM's guard-evaluation cadence absent
// configuration.
const DefaultTickInterval = 50 * time.Millisecond

// Dialer constructs a Cognit Frontend Adapter. The Supervisor does not
// use it: runInit calls cognitclient.New directly.
type Dialer interface {
	NewCFA() *cognitclient.Client
}

// pendingSlot holds a requirements change the facade has submitted but
// the supervisor has not yet applied.
type pendingSlot struct {
	mu      sync.Mutex
	reqs    scheduling.Requirements
	changed bool
}

func (p *pendingSlot) set(r scheduling.Requirements) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = r
	p.changed = true
}

func (p *pendingSlot) snapshotAndClear() (scheduling.Requirements, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, c := p.reqs, p.changed
	p.changed = false
	return r, c
}

func (p *pendingSlot) isChanged() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changed
}

// Supervisor runs the state machine described in spec.md §4.H. It is
// created fresh for each facade Init and discarded on Stop.
type Supervisor struct {
	endpoint string
	username string
	password string
	tick     time.Duration
	probePeriod time.Duration

	registry *faas.Registry
	uploads  *uploadcache.Cache
	queue    *callqueue.Queue
	rendez   *rendezvous.Rendezvous
	metrics  *metrics.Metrics

	state              State
	registerAttempts   int
	selectAttempts     int
	activeRequirements scheduling.Requirements
	pending            pendingSlot

	cfa     *cognitclient.Client
	eca     *edgeclient.Client
	prober  *latency.Prober
	cluster string

	// onTransition, when set, is invoked synchronously on every state
	// change; production supervisors leave it nil.
	onTransition func(from, to State)

	// onEvaluate, when set, is invoked at the start of every guard
	// evaluation with the state being evaluated this tick. Tests use it
	// to record the tick-by-tick state trace; production supervisors
	// leave it nil.
	onEvaluate func(State)

	stop chan struct{}
	done chan struct{}
}

// Config bundles the inputs a Supervisor needs beyond the credentials
// it authenticates with.
type Config struct {
	Endpoint          string
	Username          string
	Password          string
	TickInterval      time.Duration
	LatencyProbePeriod time.Duration
	Requirements      scheduling.Requirements
	Registry          *faas.Registry
	Uploads           *uploadcache.Cache
	Queue             *callqueue.Queue
	Rendezvous        *rendezvous.Rendezvous
	Metrics           *metrics.Metrics
}

// New creates a Supervisor in state INIT. It does not start running
// until Run is called.
func New(cfg Config) *Supervisor {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Supervisor{
		endpoint:           cfg.Endpoint,
		username:           cfg.Username,
		password:           cfg.Password,
		tick:               tick,
		probePeriod:        cfg.LatencyProbePeriod,
		registry:           cfg.Registry,
		uploads:            cfg.Uploads,
		queue:              cfg.Queue,
		rendez:             cfg.Rendezvous,
		metrics:            cfg.Metrics,
		state:              StateInit,
		activeRequirements: cfg.Requirements,
		stop:               make(chan struct{}),
		done:               make(chan struct{}),
	}
}

// State returns the supervisor's current state.
func (s *Supervisor) State() State { return s.state }

// ClusterEndpoint returns the endpoint of the currently selected
// cluster, or "" if none is active.
func (s *Supervisor) ClusterEndpoint() string { return s.cluster }

// UpdateRequirements stages a requirements change for the supervisor
// to pick up on its next guard evaluation. It rejects a no-op change.
func (s *Supervisor) UpdateRequirements(r scheduling.Requirements) error {
	if r.Equal(s.activeRequirements) {
		return util.NewValidationError("requirements unchanged")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	s.pending.set(r)
	return nil
}

// Run drives the state machine until ctx is cancelled or Stop is
// called. It blocks the calling goroutine; callers run it on its own
// thread of control.
func (s *Supervisor) Run(ctx context.Context) {
	defer close(s.done)
	defer s.stopProbe()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.evaluate(ctx)
		}
	}
}

// Stop signals Run to exit. It does not block; callers wanting to
// observe completion should select on Done().
func (s *Supervisor) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Done reports when Run has returned.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

func (s *Supervisor) transition(to State) {
	if s.metrics != nil {
		s.metrics.SetState(string(s.state), string(to))
	}
	util.WithFields(map[string]interface{}{"from": s.state, "to": to}).Debug("supervisor state transition")
	from := s.state
	s.state = to
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}

func (s *Supervisor) stopProbe() {
	if s.prober != nil {
		s.prober.Stop()
		s.prober = nil
	}
}

func (s *Supervisor) evaluate(ctx context.Context) {
	if s.onEvaluate != nil {
		s.onEvaluate(s.state)
	}
	switch s.state {
	case StateInit:
		s.runInit(ctx)
	case StateRegister:
		s.runRegister(ctx)
	case StateSelect:
		s.runSelect(ctx)
	case StateServe:
		s.runServe(ctx)
	}
}

// runInit: stop any probe, construct a fresh CFA, reset counters,
// authenticate. Guard: token non-empty → REGISTER.
func (s *Supervisor) runInit(ctx context.Context) {
	s.stopProbe()
	s.registerAttempts = 0
	s.selectAttempts = 0

	s.cfa = cognitclient.New(s.endpoint, s.username, s.password, s.uploads)

	if err := s.cfa.Authenticate(ctx); err != nil {
		util.WithState(string(StateInit)).Warnf("authenticate failed: %v", err)
		return
	}

	if s.cfa.Token() != "" {
		s.transition(StateRegister)
	}
}

// runRegister: install any pending requirements, call registerOrUpdate,
// apply the guard ladder from spec.md §4.H verbatim.
func (s *Supervisor) runRegister(ctx context.Context) {
	s.stopProbe()

	if reqs, changed := s.pending.snapshotAndClear(); changed {
		s.activeRequirements = reqs
	}

	ok, err := s.cfa.RegisterOrUpdate(ctx, s.activeRequirements)
	s.registerAttempts++
	if err != nil {
		util.WithState(string(StateRegister)).Warnf("registerOrUpdate failed: %v", err)
	}

	nowPending := s.pending.isChanged()

	switch {
	case !s.cfa.Connected():
		s.transition(StateInit)
	case s.registerAttempts >= retryBound && !ok:
		s.transition(StateInit)
	case nowPending:
		// self-loop: re-run next tick with the freshly arrived change
	case ok && !nowPending:
		s.registerAttempts = 0
		s.transition(StateSelect)
	default:
		// not yet uploaded, attempts remaining: self-loop
	}
}

// runSelect: enumerate candidates, run the selector, bind a fresh ECA,
// start the latency probe if connected.
func (s *Supervisor) runSelect(ctx context.Context) {
	s.registerAttempts = 0
	s.stopProbe()

	candidates, err := s.cfa.ListClusters(ctx)
	if err != nil {
		util.WithState(string(StateSelect)).Warnf("listClusters failed: %v", err)
	}

	endpoint := selectCluster(candidates, s.activeRequirements.LatencyBudgetMS())
	s.selectAttempts++

	if endpoint != "" {
		s.cluster = endpoint
		s.eca = edgeclient.New(endpoint, s.cfa.Token(), s.cfa.ApplicationID())
		if s.eca.Connected() {
			s.startProbe()
		}
	} else {
		s.cluster = ""
		s.eca = nil
	}

	switch {
	case !s.cfa.Connected():
		s.transition(StateInit)
	case s.selectAttempts >= retryBound && (s.eca == nil || !s.eca.Connected()):
		s.transition(StateInit)
	case s.pending.isChanged():
		s.transition(StateRegister)
	case s.eca != nil && s.eca.Connected() && s.cfa.Connected():
		s.selectAttempts = 0
		s.transition(StateServe)
	default:
		// self-loop: retry selection next tick
	}
}

func (s *Supervisor) startProbe() {
	s.prober = latency.New(s.cluster, s.probePeriod, func(ms float64) {
		if s.metrics != nil {
			s.metrics.ObserveLatencyMS(ms)
		}
		if err := s.eca.ReportLatency(context.Background(), ms); err != nil {
			util.Warnf("reportLatency failed: %v", err)
		}
	})
	s.prober.Start()
}

// runServe: dequeue and execute at most one call, then apply the
// guard ladder.
func (s *Supervisor) runServe(ctx context.Context) {
	s.selectAttempts = 0

	if s.metrics != nil {
		s.metrics.SetQueueDepth(s.queue.Len())
	}

	if call, ok := s.queue.Dequeue(); ok {
		s.handleCall(ctx, call)
		if s.metrics != nil {
			s.metrics.SetQueueDepth(s.queue.Len())
		}
	}

	switch {
	case !s.cfa.Connected():
		s.transition(StateInit)
	case s.eca == nil || !s.eca.Connected():
		s.transition(StateInit)
	case s.pending.isChanged():
		s.transition(StateRegister)
	// "Active cluster endpoint changed externally -> SELECT" has no code
	// here: s.cluster is SSM-owned and written only by runSelect, so
	// nothing outside this state machine can change it out from under
	// SERVE. The transition is unreachable by construction, not omitted.
	default:
		// self-loop
	}
}

func (s *Supervisor) handleCall(ctx context.Context, call faas.Call) {
	started := time.Now()
	logger := util.WithCall(call.ID)

	callable, ok := s.registry.Lookup(call.FunctionID)
	if !ok {
		err := fmt.Errorf("function %s not registered", call.FunctionID)
		resp := faas.ExecResponse{RetCode: faas.RetError, Err: err.Error()}
		s.deliver(call, resp)
		audit.Log(audit.NewEvent(call.ID, call.FunctionID, audit.StageDropped).
			WithMode(string(call.Mode)).WithError(err).WithDuration(time.Since(started)))
		return
	}

	_, cached := s.uploads.Lookup(uploadcache.Fingerprint(callable.Payload))
	functionID, err := s.cfa.UploadFunction(ctx, callable)
	if err != nil {
		resp := faas.ExecResponse{RetCode: faas.RetError, Err: err.Error()}
		s.deliver(call, resp)
		audit.Log(audit.NewEvent(call.ID, call.FunctionID, audit.StageDropped).
			WithMode(string(call.Mode)).WithError(err).WithDuration(time.Since(started)))
		return
	}
	if s.metrics != nil && !cached {
		s.metrics.IncUploads()
	}
	audit.Log(audit.NewEvent(call.ID, call.FunctionID, audit.StageUploaded).
		WithMode(string(call.Mode)).WithCluster(s.cluster).WithSuccess())

	logger.Debugf("executing on cluster %s (function id %d)", s.cluster, functionID)

	resp, err := s.eca.ExecuteFunction(ctx, call, fmt.Sprintf("%d", functionID))
	if err != nil {
		result := faas.ExecResponse{RetCode: faas.RetError, Err: err.Error()}
		s.deliver(call, result)
		audit.Log(audit.NewEvent(call.ID, call.FunctionID, audit.StageExecuted).
			WithMode(string(call.Mode)).WithCluster(s.cluster).WithFingerprint(uploadcache.Fingerprint(callable.Payload)).
			WithError(err).WithDuration(time.Since(started)))
		return
	}

	if call.Mode == faas.ModeSync && resp != nil {
		s.deliver(call, *resp)
	}

	event := audit.NewEvent(call.ID, call.FunctionID, audit.StageExecuted).
		WithMode(string(call.Mode)).WithCluster(s.cluster).
		WithFingerprint(uploadcache.Fingerprint(callable.Payload)).WithDuration(time.Since(started))
	if resp == nil || resp.RetCode == faas.RetSuccess {
		event.WithSuccess()
	} else {
		event.WithError(errors.New(resp.Err))
	}
	audit.Log(event)
}

func (s *Supervisor) deliver(call faas.Call, resp faas.ExecResponse) {
	if call.Mode == faas.ModeSync {
		s.rendez.Put(resp)
		return
	}
	if call.Callback != nil {
		call.Callback(resp)
	}
}

// selectCluster is a seam so tests can stub cluster selection without
// real network probes; production code delegates to pkg/selector.
var selectCluster = defaultSelectCluster
