// Package log wraps zerolog with the small set of helpers flowrunner's
// nodes and supervisor need: a process-global logger, plus
// component-scoped and node-scoped children.
//
// Call Init once at process startup (the flowctl CLI does this from its
// persistent flags); everything else reads the package-level Logger.
package log
