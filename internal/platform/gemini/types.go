package gemini

// responseSchema is the JSON document the model is instructed to return.
type responseSchema struct {
	Labels []labelSchema `json:"labels"`
}

// labelSchema is a single label in the model's reply.
type labelSchema struct {
	Name string `json:"name"`
	// Confidence is a percentage in [0, 100].
	Confidence float64 `json:"confidence"`
}

const defaultPrompt = `List the objects, scenes and concepts visible in this image.
Reply with JSON only, in the form {"labels":[{"name":"Cat","confidence":97.5}]}.
Use short capitalized nouns for names and a percentage between 0 and 100 for confidence.
Order labels from most to least confident.`
