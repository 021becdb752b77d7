// Package core provides the foundational components shared by the broker
// daemon, its workers and the admin CLI: version information, config
// loading, logging setup and wire helpers.
package core

// VERSION of project.
var VERSION = "undefined" // set during the build process with -ldflags
