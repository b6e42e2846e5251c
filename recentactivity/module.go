package recentactivity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// State is the lifecycle state of a Module.
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateRunning
	StateCompleted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	default:
		return "created"
	}
}

// ErrInvalidState is returned when a lifecycle call is made out of order.
var ErrInvalidState = errors.New("invalid lifecycle state")

// Module is the data source module driving one pipeline run:
// StartUp, then Process once, then ShutDown.
//
// Extractors run one at a time in registry order. Cancellation is polled
// only between extractors, so a running extractor is never interrupted and
// cancellation latency is bounded by the slowest single extractor.
type Module struct {
	services *ingest.Services
	registry *Registry
	log      *zap.SugaredLogger

	state State
	runID string
	// ready marks extractors whose Init succeeded; only these are
	// processed and torn down.
	ready     map[Extractor]bool
	initFails []UnitError
}

// NewModule creates a module for one run over the registry.
func NewModule(services *ingest.Services, registry *Registry) *Module {
	return &Module{
		services: services,
		registry: registry,
		log:      services.Log().Named("recentactivity"),
		runID:    ingest.NewRunID(),
		ready:    make(map[Extractor]bool),
	}
}

// State returns the current lifecycle state.
func (m *Module) State() State { return m.state }

// RunID identifies this run in logs.
func (m *Module) RunID() string { return m.runID }

// StartUp initializes every extractor in order. A failing Init excludes
// that extractor only; the error is reported in the run outcome.
func (m *Module) StartUp(ctx context.Context) error {
	if m.state != StateCreated {
		return errors.Wrapf(ErrInvalidState, "start up in state %s", m.state)
	}
	ctx = logger.WithRunID(ctx, m.runID)
	log := logger.LoggerFromContext(ctx, m.log)

	for _, e := range m.registry.Extractors() {
		if err := callIsolated(func() error { return e.Init(ctx) }); err != nil {
			log.Errorw("Extractor failed to initialize",
				logger.FieldUnit, e.Name(),
				logger.FieldError, fmt.Sprintf("%+v", err),
			)
			m.initFails = append(m.initFails, UnitError{Unit: e.Name(), Phase: "init", Err: err})
			continue
		}
		m.ready[e] = true
	}

	m.state = StateInitialized
	log.Infow("Recent activity initialized",
		logger.FieldCount, len(m.ready),
		logger.FieldTotalCount, m.registry.Len(),
	)
	return nil
}

// Process runs the extractors over ds and posts the start, error digest
// and browser digest messages. Extractor failures never escape; they are
// entries of the returned outcome.
func (m *Module) Process(ctx context.Context, ds ingest.DataSource, status ingest.StatusHelper) (*RunOutcome, error) {
	if m.state != StateInitialized {
		return nil, errors.Wrapf(ErrInvalidState, "process in state %s", m.state)
	}
	m.state = StateRunning

	ctx = logger.WithRunID(ctx, m.runID)
	log := logger.LoggerFromContext(ctx, m.log).With(logger.FieldDataSource, ds.Name())

	outcome := &RunOutcome{RunID: m.runID, DataSource: ds.Name()}
	for _, f := range m.initFails {
		outcome.Skipped = append(outcome.Skipped, f.Unit)
		outcome.Errors = append(outcome.Errors, ErrorEntry{
			Unit:    f.Unit,
			Message: f.Unit + " failed to initialize -- see log",
		})
	}

	m.services.PostMessage(ingest.MessageInfo, ModuleName, "Started "+ds.Name(), "")

	extractors := m.registry.Extractors()
	status.SwitchToDeterminate(len(extractors))
	status.Progress(0)

	for i, e := range extractors {
		if status.IsCancelled() || ctx.Err() != nil {
			log.Infow("Recent activity cancelled", "next_unit", e.Name())
			outcome.Cancelled = true
			break
		}

		if m.ready[e] {
			m.processOne(ctx, log, e, ds, status, outcome)
		}

		status.Progress(i + 1)
	}

	for _, b := range m.registry.Browsers() {
		outcome.Presence = append(outcome.Presence, Presence{Unit: b.Name(), Found: b.FoundData()})
	}

	subject, body := RenderSummary(outcome)
	m.services.PostMessage(SummaryLevel(outcome), ModuleName,
		"Finished "+ds.Name()+" - "+subject, body)
	m.services.PostMessage(ingest.MessageInfo, ModuleName,
		ds.Name()+" - Browser Results", RenderDataPresence(outcome))

	return outcome, nil
}

func (m *Module) processOne(ctx context.Context, log *zap.SugaredLogger, e Extractor, ds ingest.DataSource, status ingest.StatusHelper, outcome *RunOutcome) {
	start := time.Now()
	outcome.Attempted = append(outcome.Attempted, e.Name())

	var res ingest.Result
	if err := callIsolated(func() error {
		res = e.Process(ctx, ds, status)
		return nil
	}); err != nil {
		res = ingest.Failed(ingest.KindUnitFatal, err, "panic in extractor")
	}
	outcome.Results = append(outcome.Results, UnitResult{Unit: e.Name(), Result: res})

	if !res.IsOK() {
		log.Errorw("Extractor failed",
			logger.FieldUnit, e.Name(),
			"kind", res.Kind,
			"message", res.Message,
			logger.FieldError, fmt.Sprintf("%+v", res.Err),
		)
		outcome.Errors = append(outcome.Errors, ErrorEntry{
			Unit:    e.Name(),
			Message: e.Name() + " had errors -- see log",
		})
	}

	// Reported errors are collected whether or not Process failed
	for _, msg := range e.ErrorMessages() {
		outcome.Errors = append(outcome.Errors, ErrorEntry{Unit: e.Name(), Message: msg})
	}

	log.Debugw("Extractor finished",
		logger.FieldUnit, e.Name(),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		"found_data", e.FoundData(),
	)
}

// ShutDown calls Stop on every initialized extractor when cancelled and
// Complete otherwise. Each call is isolated; failures are returned and
// logged but never stop the remaining calls.
func (m *Module) ShutDown(cancelled bool) ([]UnitError, error) {
	if m.state != StateInitialized && m.state != StateRunning {
		return nil, errors.Wrapf(ErrInvalidState, "shut down in state %s", m.state)
	}

	phase := "complete"
	if cancelled {
		phase = "stop"
	}

	var failures []UnitError
	for _, e := range m.registry.Extractors() {
		if !m.ready[e] {
			continue
		}
		call := e.Complete
		if cancelled {
			call = e.Stop
		}
		if err := callIsolated(call); err != nil {
			m.log.Errorw("Extractor teardown failed",
				logger.FieldRunID, m.runID,
				logger.FieldUnit, e.Name(),
				"phase", phase,
				logger.FieldError, fmt.Sprintf("%+v", err),
			)
			failures = append(failures, UnitError{Unit: e.Name(), Phase: phase, Err: err})
		}
	}

	if cancelled {
		m.state = StateStopped
		m.log.Infow("Recent activity stopped", logger.FieldRunID, m.runID)
	} else {
		m.state = StateCompleted
	}
	return failures, nil
}

// Run drives a full lifecycle: StartUp, Process, then Stop teardown if
// the run was cancelled or Complete otherwise.
func (m *Module) Run(ctx context.Context, ds ingest.DataSource, status ingest.StatusHelper) (*RunOutcome, error) {
	if err := m.StartUp(ctx); err != nil {
		return nil, err
	}
	outcome, err := m.Process(ctx, ds, status)
	if err != nil {
		return nil, err
	}
	teardown, err := m.ShutDown(outcome.Cancelled)
	if err != nil {
		return outcome, err
	}
	outcome.Teardown = teardown
	return outcome, nil
}

// callIsolated runs fn, converting a panic into an error.
func callIsolated(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
		}
	}()
	return fn()
}
