package depthpipe

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type registryEntry struct {
	stage  *StageBase
	target *TargetStream
}

// Registry maintains, per stream, which (stage, target descriptor) owns
// it, and exposes the enable/disable traversal described in §4.4. The
// by-stream lookup is read far more often (every GetStreamData/Supports
// call) than written (built once at graph-construction time), the shape
// xsync.MapOf targets — grounded on bgpfix/bgpfix's pipe.Pipe.KV use of
// the same type for its generic key-value store.
type Registry struct {
	mu      sync.Mutex // guards EnabledMode mutation, activation and callbacks
	entries *xsync.MapOf[Stream, registryEntry]
}

// NewRegistry builds an empty registry; call Register for every stage's
// target streams before using it.
func NewRegistry() *Registry {
	return &Registry{entries: xsync.NewMapOf[Stream, registryEntry]()}
}

// Register records the owning (stage, target) for every TargetStream the
// stage declares. Call once per stage after BuildGraph.
func (r *Registry) Register(stage *StageBase) {
	for _, t := range stage.Targets {
		r.entries.Store(t.Stream, registryEntry{stage: stage, target: t})
	}
}

func (r *Registry) lookup(s Stream) (registryEntry, bool) {
	return r.entries.Load(s)
}

// Supports reports whether the registry knows about stream s at all.
func (r *Registry) Supports(s Stream) bool {
	_, ok := r.lookup(s)
	return ok
}

// SupportMode returns the stage's fixed support_mode for s, or ModeNone if
// s is unknown.
func (r *Registry) SupportMode(s Stream) Mode {
	e, ok := r.lookup(s)
	if !ok {
		return ModeNone
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return e.target.SupportMode
}

// EnabledMode returns the stage's current enabled_mode for s, or ModeNone
// if s is unknown.
func (r *Registry) EnabledMode(s Stream) Mode {
	e, ok := r.lookup(s)
	if !ok {
		return ModeNone
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return e.target.EnabledMode
}

// UpgradeNative marks s as natively produced by the device: support_mode
// and enabled_mode both become NATIVE, making the synthetic producer
// inert for that stream (§4.3). Called once by the stream-support
// initializer after graph construction.
func (r *Registry) UpgradeNative(s Stream) {
	e, ok := r.lookup(s)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.target.SupportMode = ModeNative
	e.target.EnabledMode = ModeNative
}

// SetCallback installs (f != nil) or removes (f == nil) the per-stream
// listener callback (§4.4, §5 callbacks registered under the registry
// lock, invoked without it).
func (r *Registry) SetCallback(s Stream, f func(StreamData)) bool {
	e, ok := r.lookup(s)
	if !ok {
		return false
	}
	r.mu.Lock()
	e.target.callback = f
	r.mu.Unlock()
	return true
}

// HasCallback reports whether s currently has a listener callback set.
func (r *Registry) HasCallback(s Stream) bool {
	e, ok := r.lookup(s)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return e.target.callback != nil
}

// callbackFor returns the current callback for s without holding the lock
// past the read, so invocation never happens under it (§5).
func (r *Registry) callbackFor(s Stream) func(StreamData) {
	e, ok := r.lookup(s)
	if !ok {
		return nil
	}
	r.mu.Lock()
	f := e.target.callback
	r.mu.Unlock()
	return f
}

// Enable traverses from stream's owning stage toward the root (§4.4),
// flipping every NONE target to SYNTHETIC along the way and invoking
// onChange for each one, then activating any stage that changed. NATIVE
// targets are never touched (invariant 2, §8). With dryRun, onChange is
// still invoked for what would have changed but nothing is mutated or
// activated (§9 open question, preserved as specified).
func (r *Registry) Enable(s Stream, onChange func(Stream), dryRun bool) error {
	e, ok := r.lookup(s)
	if !ok {
		return ErrNotSupported
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for st := e.stage; st != nil; st = st.Parent {
		changed := false
		for _, t := range st.Targets {
			if t.SupportMode == ModeNative {
				continue
			}
			if t.EnabledMode == ModeNone {
				if onChange != nil {
					onChange(t.Stream)
				}
				if !dryRun {
					t.EnabledMode = ModeSynthetic
					changed = true
				}
			}
		}
		if changed && !dryRun {
			st.Activate()
		}
	}
	return nil
}

// Disable traverses from stream's owning stage toward its leaves (§4.4),
// flipping every SYNTHETIC target back to NONE and invoking onChange,
// deactivating any stage whose targets are now all NONE. NATIVE targets
// are owned by the device and untouched.
func (r *Registry) Disable(s Stream, onChange func(Stream), dryRun bool) error {
	e, ok := r.lookup(s)
	if !ok {
		return ErrNotSupported
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var walk func(st *StageBase)
	walk = func(st *StageBase) {
		changed := false
		for _, t := range st.Targets {
			if t.SupportMode == ModeNative {
				continue
			}
			if t.EnabledMode == ModeSynthetic {
				if onChange != nil {
					onChange(t.Stream)
				}
				if !dryRun {
					t.EnabledMode = ModeNone
					changed = true
				}
			}
		}
		if changed && !dryRun {
			allNone := true
			for _, t := range st.Targets {
				if t.EnabledMode != ModeNone {
					allNone = false
					break
				}
			}
			if allNone {
				st.Deactivate(true)
			}
		}
		for _, c := range st.Children {
			walk(c)
		}
	}
	walk(e.stage)
	return nil
}
