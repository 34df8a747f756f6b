package vision

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/apex/log"

	"physiqueAi/internal/encoder"
	"physiqueAi/internal/physique"
)

// maxFormMemory bounds the part of a multipart body kept in memory; larger
// uploads spill to temp files.
const maxFormMemory = 8 << 20

// Handler exposes one-shot endpoints for callers that manage their own state.
type Handler struct {
	Analyzer   Analyzer
	Visualizer Visualizer
}

// Analyze handles POST /api/vision/analyze.
func (h Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.Analyzer == nil {
		http.Error(w, "vision analysis inactive", http.StatusServiceUnavailable)
		return
	}
	payload, ok := readImage(w, r)
	if !ok {
		return
	}

	result, err := h.Analyzer.Analyze(r.Context(), payload)
	if err != nil {
		log.WithError(err).Error("vision: analyze")
		http.Error(w, physique.UserMessage(err), http.StatusBadGateway)
		return
	}
	writeJSON(w, result)
}

// Visualize handles POST /api/vision/visualize.
func (h Handler) Visualize(w http.ResponseWriter, r *http.Request) {
	if h.Visualizer == nil {
		http.Error(w, "vision rendering inactive", http.StatusServiceUnavailable)
		return
	}
	payload, ok := readImage(w, r)
	if !ok {
		return
	}

	image, err := h.Visualizer.GenerateFuture(r.Context(), payload, SplitTargetAreas(r.MultipartForm.Value["target_areas"]))
	if err != nil {
		log.WithError(err).Error("vision: generate future")
		http.Error(w, physique.UserMessage(err), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"image": image})
}

func readImage(w http.ResponseWriter, r *http.Request) (encoder.Payload, bool) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		http.Error(w, "multipart form with image_file is required", http.StatusBadRequest)
		return encoder.Payload{}, false
	}
	file, header, err := r.FormFile("image_file")
	if err != nil {
		http.Error(w, "image_file is required", http.StatusBadRequest)
		return encoder.Payload{}, false
	}
	defer file.Close()

	payload, err := encoder.Encode(file, header.Header.Get("Content-Type"))
	if err != nil {
		log.WithError(err).Warn("vision: read upload")
		http.Error(w, physique.UserMessage(err), http.StatusBadRequest)
		return encoder.Payload{}, false
	}
	return payload, true
}

// SplitTargetAreas accepts repeated and comma separated form values.
func SplitTargetAreas(values []string) []string {
	var areas []string
	for _, value := range values {
		for _, chunk := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(chunk); trimmed != "" {
				areas = append(areas, trimmed)
			}
		}
	}
	return areas
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
