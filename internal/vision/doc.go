// Package vision defines the boundary between the extraction worker and the
// external label-detection engine, along with the error taxonomy adapters use
// to tell throttling and outages apart from images that can never be labeled.
package vision
