// Package domain contains the core entities of the image labeling pipeline:
// the object-creation notification that drives extraction, and the label and
// thumbnail records it produces. It is independent of any queue, store, or
// delivery mechanism.
package domain
