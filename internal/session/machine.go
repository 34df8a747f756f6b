package session

import (
	"context"
	"errors"
	"sync"

	"github.com/apex/log"

	"physiqueAi/internal/media"
	"physiqueAi/internal/physique"
)

var (
	// ErrBusy is returned when a trigger arrives while a model call is in flight.
	ErrBusy = errors.New("session: another operation is in flight")
	// ErrStale is returned for completions of an operation that was reset or replaced.
	ErrStale = errors.New("session: operation no longer current")
	// ErrNotReady is returned when visualization is requested without a detected person.
	ErrNotReady = errors.New("session: nothing to visualize")
	// ErrResultShown is returned for uploads while a result is on screen; the
	// session must be reset first.
	ErrResultShown = errors.New("session: reset before uploading another photo")
)

// Releaser frees stored previews.
type Releaser interface {
	Release(ctx context.Context, key string) error
}

// Ticket ties an async completion to the operation that started it.
type Ticket uint64

// Machine is the state machine of one browser session. It owns at most one
// preview at a time and releases it on every path that drops it.
type Machine struct {
	mu       sync.Mutex
	state    State
	cycle    uint64
	previews Releaser
}

// NewMachine returns an idle machine releasing previews through previews.
func NewMachine(previews Releaser) *Machine {
	return &Machine{state: idle(), previews: previews}
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// BeginAnalysis moves from Idle to Analyzing with a new upload. The machine
// takes ownership of preview; it is released right away if the trigger is
// refused.
func (m *Machine) BeginAnalysis(ctx context.Context, upload Upload, preview media.Preview) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.state.uploadRefusal(); err != nil {
		m.release(ctx, preview)
		return 0, err
	}

	m.cycle++
	m.state = State{
		Phase:   PhaseAnalyzing,
		Upload:  &upload,
		Preview: preview,
	}
	return Ticket(m.cycle), nil
}

// FinishAnalysis shows the result of the analysis identified by t.
func (m *Machine) FinishAnalysis(t Ticket, result physique.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(t, PhaseAnalyzing) {
		return ErrStale
	}
	next := m.state
	next.Phase = PhaseResult
	next.Result = &result
	next.Error = ""
	m.state = next
	return nil
}

// FailAnalysis returns to Idle, the state the analysis started from, with
// message. The upload and its preview are dropped.
func (m *Machine) FailAnalysis(ctx context.Context, t Ticket, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(t, PhaseAnalyzing) {
		return ErrStale
	}
	m.release(ctx, m.state.Preview)
	m.state = State{Phase: PhaseIdle, Error: message}
	return nil
}

// RejectUpload handles a photo that could not be read. It applies wherever an
// upload would have been accepted, so no preview is held.
func (m *Machine) RejectUpload(message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.state.uploadRefusal(); err != nil {
		return err
	}
	m.cycle++
	m.state = State{Phase: PhaseIdle, Error: message}
	return nil
}

// BeginGeneration moves a detected result to Generating and returns what the
// visualizer needs.
func (m *Machine) BeginGeneration() (Ticket, Upload, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Busy() {
		return 0, Upload{}, nil, ErrBusy
	}
	if !m.state.CanVisualize() || m.state.Upload == nil {
		return 0, Upload{}, nil, ErrNotReady
	}

	m.cycle++
	next := m.state
	next.Phase = PhaseGenerating
	next.Error = ""
	m.state = next

	areas := append([]string(nil), next.Result.TargetAreas...)
	return Ticket(m.cycle), *next.Upload, areas, nil
}

// FinishGeneration attaches the generated image to the result.
func (m *Machine) FinishGeneration(t Ticket, image string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(t, PhaseGenerating) {
		return ErrStale
	}
	next := m.state
	next.Phase = PhaseResult
	next.GeneratedImage = image
	m.state = next
	return nil
}

// FailGeneration goes back to the result view, keeping the analysis.
func (m *Machine) FailGeneration(t Ticket, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(t, PhaseGenerating) {
		return ErrStale
	}
	next := m.state
	next.Phase = PhaseResult
	next.Error = message
	m.state = next
	return nil
}

// DismissError clears the error banner and nothing else.
func (m *Machine) DismissError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Error == "" {
		return
	}
	next := m.state
	next.Error = ""
	m.state = next
}

// Reset releases the held preview, if any, and returns to Idle. Completions of
// in-flight calls become stale.
func (m *Machine) Reset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.release(ctx, m.state.Preview)
	m.cycle++
	m.state = idle()
}

func (m *Machine) current(t Ticket, phase Phase) bool {
	return m.state.Phase == phase && Ticket(m.cycle) == t
}

// release frees preview. Callers replace the state holding it in the same
// critical section, so each preview is released once.
func (m *Machine) release(ctx context.Context, preview media.Preview) {
	// Inline previews have no key and nothing to free.
	if preview.Key == "" || m.previews == nil {
		return
	}
	if err := m.previews.Release(ctx, preview.Key); err != nil {
		log.WithError(err).WithField("key", preview.Key).Warn("session: release preview")
	}
}
