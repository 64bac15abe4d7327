// Package logging configures the process-wide logrus logger used by every
// subsystem of the hotplug supervisor and runtime shim.
//
// Initialize is called once, from the CLI's global-flag handling, before the
// fork-and-delegate shim. GetLogger("subsystem") returns a
// *logrus.Entry tagged with a "module" field, mirroring the per-module
// logger registry kept in internal/logging/logger.go.
package logging
