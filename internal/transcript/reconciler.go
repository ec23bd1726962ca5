package transcript

import (
	"strings"
	"sync"
)

// Reconciler maintains the single authoritative accumulated transcript for a
// realtime session. Confirmed text is append-only and never retracted; the
// trailing unconfirmed fragment is replaced wholesale by each partial event.
//
// Mutation is serialized behind a mutex (single writer); readers always see a
// consistent snapshot, never an interleaved half-update.
type Reconciler struct {
	mu               sync.Mutex
	finalAccumulated string
	currentPartial   string
}

// Snapshot is a consistent view of the reconciliation state
type Snapshot struct {
	Final    string `json:"final"`
	Partial  string `json:"partial"`
	Composed string `json:"composed"`
}

// NewReconciler creates an empty reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// ApplyPartial replaces the current unconfirmed fragment. Partials never
// concatenate: each one supersedes the previous.
func (r *Reconciler) ApplyPartial(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentPartial = text
}

// ApplyFinal appends a confirmed fragment to the accumulated transcript and
// clears the current partial. Empty finals are ignored.
func (r *Reconciler) ApplyFinal(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	r.appendFinalLocked(text)
	r.currentPartial = ""
}

// ApplyEndOfUtterance promotes a non-empty current partial to confirmed text,
// as if it had arrived as a final. With no pending partial it is a no-op.
func (r *Reconciler) ApplyEndOfUtterance() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentPartial == "" {
		return
	}

	r.appendFinalLocked(r.currentPartial)
	r.currentPartial = ""
}

func (r *Reconciler) appendFinalLocked(text string) {
	if r.finalAccumulated == "" {
		r.finalAccumulated = text
		return
	}
	r.finalAccumulated = r.finalAccumulated + " " + text
}

// Composed returns the externally visible transcript: confirmed text followed
// by, if non-empty, a separating space and the trailing unconfirmed fragment.
func (r *Reconciler) Composed() string {
	return r.Snapshot().Composed
}

// Snapshot returns a consistent copy of the reconciliation state
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	composed := r.finalAccumulated
	if r.currentPartial != "" {
		if composed != "" {
			composed += " "
		}
		composed += r.currentPartial
	}

	return Snapshot{
		Final:    r.finalAccumulated,
		Partial:  r.currentPartial,
		Composed: composed,
	}
}
