// Package output provides the destinations a plot file is written to.
//
// Every destination is a [Sink]: an [io.Writer] whose content only becomes
// visible once Commit is called. [AtomicFile] streams into a temporary file
// next to the target and renames it over the target on Commit, so an
// aborted export never leaves a truncated file behind. [StdoutSink] writes
// straight through and is used for dry runs.
package output
