package physique

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed reports model output that does not match the declared shape.
var ErrMalformed = errors.New("malformed analysis")

type wireExercise struct {
	Name  *string `json:"name"`
	Sets  *int    `json:"sets"`
	Reps  *string `json:"reps"`
	Focus *string `json:"focus"`
}

type wireResult struct {
	Detected         *bool           `json:"detected"`
	Message          *string         `json:"message"`
	Summary          *string         `json:"summary"`
	TargetAreas      *[]string       `json:"targetAreas"`
	PostureNotes     *[]string       `json:"postureNotes"`
	EstimatedBodyFat *string         `json:"estimatedBodyFat"`
	Routine          *[]wireExercise `json:"routine"`
}

// ParseAnalysis decodes model output into an AnalysisResult. Required fields
// must be present; a result with detected=false only needs the flag. Nothing
// partial is ever returned.
func ParseAnalysis(text string) (AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return AnalysisResult{}, fmt.Errorf("%w: empty text", ErrMalformed)
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		wire = wireResult{}
		if err := json.Unmarshal([]byte(text[start:end+1]), &wire); err != nil {
			return AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	return wire.toResult()
}

func (w wireResult) toResult() (AnalysisResult, error) {
	if w.Detected == nil {
		return AnalysisResult{}, missing("detected")
	}
	if !*w.Detected {
		return AnalysisResult{Detected: false, Message: deref(w.Message)}, nil
	}

	switch {
	case w.Summary == nil:
		return AnalysisResult{}, missing("summary")
	case w.TargetAreas == nil:
		return AnalysisResult{}, missing("targetAreas")
	case w.PostureNotes == nil:
		return AnalysisResult{}, missing("postureNotes")
	case w.Routine == nil:
		return AnalysisResult{}, missing("routine")
	}

	routine := make([]Exercise, 0, len(*w.Routine))
	for i, ex := range *w.Routine {
		switch {
		case ex.Name == nil:
			return AnalysisResult{}, missing(fmt.Sprintf("routine[%d].name", i))
		case ex.Sets == nil:
			return AnalysisResult{}, missing(fmt.Sprintf("routine[%d].sets", i))
		case ex.Reps == nil:
			return AnalysisResult{}, missing(fmt.Sprintf("routine[%d].reps", i))
		case ex.Focus == nil:
			return AnalysisResult{}, missing(fmt.Sprintf("routine[%d].focus", i))
		}
		if *ex.Sets <= 0 {
			return AnalysisResult{}, fmt.Errorf("%w: routine[%d].sets must be positive, got %d", ErrMalformed, i, *ex.Sets)
		}
		routine = append(routine, Exercise{
			Name:  *ex.Name,
			Sets:  *ex.Sets,
			Reps:  *ex.Reps,
			Focus: *ex.Focus,
		})
	}

	return AnalysisResult{
		Detected:         true,
		Summary:          *w.Summary,
		TargetAreas:      append([]string{}, *w.TargetAreas...),
		PostureNotes:     append([]string{}, *w.PostureNotes...),
		EstimatedBodyFat: deref(w.EstimatedBodyFat),
		Routine:          routine,
	}, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformed, field)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
