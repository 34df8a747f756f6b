package physique

// Exercise is one entry of the suggested routine.
type Exercise struct {
	Name  string `json:"name"`
	Sets  int    `json:"sets"`
	Reps  string `json:"reps"`
	Focus string `json:"focus"`
}

// AnalysisResult is the structured feedback produced for one uploaded photo.
// When Detected is false only Message carries meaning.
type AnalysisResult struct {
	Detected         bool       `json:"detected"`
	Message          string     `json:"message,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	TargetAreas      []string   `json:"targetAreas,omitempty"`
	PostureNotes     []string   `json:"postureNotes,omitempty"`
	EstimatedBodyFat string     `json:"estimatedBodyFat,omitempty"`
	Routine          []Exercise `json:"routine,omitempty"`
}

// NoPersonMessage is shown when the model flags the photo without explaining why.
const NoPersonMessage = "We couldn't clearly see a person in this image. Please upload a clear photo of your physique."

// Explanation returns the text for the no-person view.
func (r AnalysisResult) Explanation() string {
	if r.Message != "" {
		return r.Message
	}
	return NoPersonMessage
}
