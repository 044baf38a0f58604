// Package watch re-runs the export whenever a plot layer file changes. It
// watches the directory holding the layer, debounces rapid events and runs
// one export at a time.
package watch
