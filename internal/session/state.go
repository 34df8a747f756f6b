// Package session holds the presentation state of each browser session and
// drives the model calls that move it forward.
package session

import (
	"physiqueAi/internal/encoder"
	"physiqueAi/internal/media"
	"physiqueAi/internal/physique"
)

// Phase names the variant of State that is active.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseResult     Phase = "result"
	PhaseGenerating Phase = "generating"
)

// Upload is the photo a session currently works on.
type Upload struct {
	Filename string
	Payload  encoder.Payload
}

// State is one immutable snapshot of a session. Transitions replace it
// wholesale; fields are never edited in place.
type State struct {
	Phase          Phase
	Upload         *Upload
	Preview        media.Preview
	Result         *physique.AnalysisResult
	GeneratedImage string
	Error          string
}

func idle() State {
	return State{Phase: PhaseIdle}
}

// Analyzing reports whether an analysis call is in flight.
func (s State) Analyzing() bool {
	return s.Phase == PhaseAnalyzing
}

// GeneratingImage reports whether a visualization call is in flight.
func (s State) GeneratingImage() bool {
	return s.Phase == PhaseGenerating
}

// Busy reports whether any model call is in flight.
func (s State) Busy() bool {
	return s.Analyzing() || s.GeneratingImage()
}

// uploadRefusal returns why a new photo cannot be analyzed now, or nil.
func (s State) uploadRefusal() error {
	switch {
	case s.Busy():
		return ErrBusy
	case s.Phase != PhaseIdle:
		return ErrResultShown
	}
	return nil
}

// HasResult reports whether an analysis result is on screen.
func (s State) HasResult() bool {
	return s.Result != nil && (s.Phase == PhaseResult || s.Phase == PhaseGenerating)
}

// CanVisualize reports whether the "Visualize Progress" action applies.
func (s State) CanVisualize() bool {
	return s.Phase == PhaseResult && s.Result != nil && s.Result.Detected && s.GeneratedImage == ""
}

// View is the JSON form of a State. The upload bytes stay on the server.
type View struct {
	Phase             Phase                    `json:"phase"`
	FileName          string                   `json:"fileName,omitempty"`
	PreviewURL        string                   `json:"previewUrl,omitempty"`
	Analyzing         bool                     `json:"analyzing"`
	Result            *physique.AnalysisResult `json:"result"`
	Error             string                   `json:"error,omitempty"`
	GeneratedImage    string                   `json:"generatedImage,omitempty"`
	IsGeneratingImage bool                     `json:"isGeneratingImage"`
}

// View renders s for API clients.
func (s State) View() View {
	view := View{
		Phase:             s.Phase,
		PreviewURL:        s.Preview.URL,
		Analyzing:         s.Analyzing(),
		Result:            s.Result,
		Error:             s.Error,
		GeneratedImage:    s.GeneratedImage,
		IsGeneratingImage: s.GeneratingImage(),
	}
	if s.Upload != nil {
		view.FileName = s.Upload.Filename
	}
	return view
}
