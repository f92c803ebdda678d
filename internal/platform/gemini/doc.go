// Package gemini provides a vision.Engine backed by Google's Gemini API.
// The model is asked to describe the image as a JSON list of labels with
// confidences, which is then validated and filtered like any other engine's
// output.
package gemini
