package depthpipe

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ComputeFunc is a stage's built-in kernel: a pure function from input to
// output, opaque to the core (§4.7). It must not block past completion of
// one frame and must report failure through its error return rather than
// panicking; a failing compute drops that input and the stage carries on.
type ComputeFunc func(in *StageInput, out *StageOutput) error

// ProcessHook is consulted before ComputeFunc on every input (§4.1, §4.6).
// Returning (true, nil) means out was fully populated by the hook and the
// built-in compute is skipped; (false, nil) falls through to ComputeFunc.
type ProcessHook func(in *StageInput, out *StageOutput, parent *StageBase) (handled bool, err error)

// PostProcessHook runs after every successful output, used by the stream
// registry to fan a stage's output out to listeners (§4.1).
type PostProcessHook func(out *StageOutput)

// StageBase is a node in the pipeline DAG (§3, §4.1). It owns one worker
// goroutine with a single-slot, latest-wins mailbox (§5): a submit that
// arrives while one is already pending replaces it, never queues behind it.
type StageBase struct {
	zerolog.Logger

	Name string

	InputPaired  bool
	OutputPaired bool

	Parent   *StageBase
	Targets  []*TargetStream
	Children []*StageBase

	Period int // 0 = every input; otherwise keep every Period-th survivor

	Compute   ComputeFunc
	process   ProcessHook
	post      PostProcessHook

	mailbox  chan *StageInput
	stopCh   chan struct{}
	wg       sync.WaitGroup
	active   atomic.Bool
	inflight atomic.Bool
	seen     atomic.Uint64

	outMu sync.Mutex
	last  *StageOutput
}

// NewStageBase constructs an inert (deactivated) stage node.
func NewStageBase(name string, log zerolog.Logger, inputPaired, outputPaired bool) *StageBase {
	return &StageBase{
		Logger:       log.With().Str("stage", name).Logger(),
		Name:         name,
		InputPaired:  inputPaired,
		OutputPaired: outputPaired,
		mailbox:      make(chan *StageInput, 1),
	}
}

// AddChild appends to the child list. Must be called before first
// activation; topology is fixed after construction (§3).
func (s *StageBase) AddChild(child *StageBase) {
	s.Children = append(s.Children, child)
	child.Parent = s
}

// AddTargetStream registers a stream this stage can produce.
func (s *StageBase) AddTargetStream(t *TargetStream) {
	s.Targets = append(s.Targets, t)
}

// SetProcessHook installs (or clears, with nil) the plugin override.
func (s *StageBase) SetProcessHook(f ProcessHook) { s.process = f }

// SetPostProcessHook installs (or clears, with nil) the listener-fanout hook.
func (s *StageBase) SetPostProcessHook(f PostProcessHook) { s.post = f }

// IsActivated reports whether the worker is currently running.
func (s *StageBase) IsActivated() bool { return s.active.Load() }

// Activate starts the worker goroutine if not already running.
func (s *StageBase) Activate() {
	if !s.active.CompareAndSwap(false, true) {
		return
	}
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.stopCh)
}

// Deactivate stops the worker. With wait=true it drains the mailbox,
// waits for any in-flight compute to finish, then returns (used for
// pipeline teardown, child-to-parent). With wait=false it signals and
// returns immediately; the worker finishes its current compute, then
// stops on its own (§5).
func (s *StageBase) Deactivate(wait bool) {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	select {
	case <-s.mailbox:
	default:
	}
	close(s.stopCh)
	if wait {
		s.wg.Wait()
	}
}

// Submit hands a new input to the stage. Non-blocking; if the worker is
// busy, this replaces whatever is currently queued (latest-wins, §5).
// Inputs arriving while deactivated are discarded silently (§4.1).
func (s *StageBase) Submit(in *StageInput) {
	if !s.active.Load() {
		return
	}
	for {
		select {
		case s.mailbox <- in:
			return
		default:
		}
		select {
		case <-s.mailbox:
		default:
		}
	}
}

func (s *StageBase) run(stop chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case in := <-s.mailbox:
			s.process1(in)
		}
	}
}

// process1 runs the per-input pipeline described in §4.1, steps 1-5.
func (s *StageBase) process1(in *StageInput) {
	if s.Period > 0 {
		n := s.seen.Add(1)
		if (n-1)%uint64(s.Period) != 0 {
			return
		}
	}

	s.inflight.Store(true)
	defer s.inflight.Store(false)

	out := &StageOutput{Paired: s.OutputPaired}

	handled := false
	if s.process != nil {
		ok, err := s.process(in, out, s)
		if err != nil {
			s.Warn().Err(err).Msg("process hook error, dropping input")
			return
		}
		handled = ok
	}

	if !handled {
		if s.Compute == nil {
			return
		}
		if err := s.Compute(in, out); err != nil {
			s.Debug().Err(err).Msg("compute error, dropping input")
			return
		}
	}

	s.outMu.Lock()
	s.last = out
	s.outMu.Unlock()

	if s.post != nil {
		s.post(out)
	}

	for _, c := range s.Children {
		c.Submit(out)
	}
}

// InFlight reports whether the worker is currently executing a compute.
// Best-effort: a caller using this to avoid blocking behind Deactivate
// must tolerate a compute starting immediately after the check returns
// false.
func (s *StageBase) InFlight() bool { return s.inflight.Load() }

// LastOutput returns the most recently produced output, or nil if this
// stage has never produced one (§8's "paired-output not-ready" case).
func (s *StageBase) LastOutput() *StageOutput {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.last
}
