package prompts

import (
	"fmt"
	"strings"
)

const analysisPrompt = `Analyze this image from a fitness and physiotherapy perspective.
1. Identify if there is a person in the image. If not, set "detected" to false and explain why in "message".
2. If a person is detected, analyze their physique, posture, and muscle development.
3. Identify "targetAreas" (lagging muscle groups, imbalances, or areas that need work).
4. Note any posture observations in "postureNotes" (e.g. rounded shoulders, anterior pelvic tilt, good alignment).
5. Suggest a specific workout "routine" with 4-6 exercises targeting these areas. "sets" is a whole number, "reps" may be a range or a duration.
6. Estimate a body fat percentage range in "estimatedBodyFat" if visible (e.g. "15-20%").

Be professional, constructive, and encouraging. Focus on aesthetics and functional health.`

const futureProgressTemplate = `The user is following a fitness routine to improve these areas: %s.
Generate a photorealistic "after" image of this person.
1. Show visible muscle growth and definition in the target areas (hypertrophy).
2. Improve posture if needed.
3. CRITICAL: Keep the face, skin tone, background, and lighting EXACTLY the same.
4. The result should look like a natural progression after 6 months of training.`

// Analysis returns the fixed instruction sent with every analysis request.
func Analysis() string {
	return analysisPrompt
}

// FutureProgress renders the visualization instruction for the given target areas.
func FutureProgress(targetAreas []string) string {
	areas := make([]string, 0, len(targetAreas))
	for _, area := range targetAreas {
		if trimmed := strings.TrimSpace(area); trimmed != "" {
			areas = append(areas, trimmed)
		}
	}
	if len(areas) == 0 {
		areas = append(areas, "overall physique")
	}
	return fmt.Sprintf(futureProgressTemplate, strings.Join(areas, ", "))
}
