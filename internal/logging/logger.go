// Package logging provides structured, per-module logging for the hotplug
// supervisor and runtime shim.
//
// Output routing supports JSON-lines
// (logrus's JSONFormatter) when --log-format=json, otherwise plain text,
// written either to the file given by --log or, when no log file is
// configured, to syslog (datagram /dev/log, facility user) and, when
// available, to the systemd journal.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config mirrors the subset of the OCI-runtime global flags that affect
// logging: --debug, --log, --log-format.
type Config struct {
	Debug  bool
	Log    string // path to a log file; empty means syslog/journal
	Format string // "text" or "json"
}

var (
	mutex         sync.RWMutex
	moduleLoggers = make(map[string]*logrus.Entry)
	rootLogger    = logrus.New()
)

func init() {
	rootLogger.SetOutput(os.Stderr)
	rootLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Initialize wires the root logger's formatter, level and output chain.
// Safe to call once at process start, before the fork in the runtime
// integration shim: the child inherits the configured logger.
func Initialize(cfg Config) error {
	mutex.Lock()
	defer mutex.Unlock()

	if cfg.Debug {
		rootLogger.SetLevel(logrus.DebugLevel)
	} else {
		rootLogger.SetLevel(logrus.InfoLevel)
	}

	if strings.EqualFold(cfg.Format, "json") {
		rootLogger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		rootLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	rootLogger.ReplaceHooks(make(logrus.LevelHooks))

	var out io.Writer
	switch {
	case cfg.Log != "":
		f, err := os.OpenFile(cfg.Log, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		out = f
	default:
		if hook, hookErr := newSyslogHook(); hookErr == nil {
			rootLogger.AddHook(hook)
		}
		if IsJournalAvailable() {
			rootLogger.AddHook(newJournalHook())
		}
		out = io.Discard
		if isStderrAvailable() {
			out = os.Stderr
		}
	}
	rootLogger.SetOutput(out)

	for module, entry := range moduleLoggers {
		moduleLoggers[module] = rootLogger.WithField("module", entry.Data["module"])
	}
	return nil
}

// GetLogger returns the logger for a subsystem, creating it on first use.
// Subsystem names used throughout the module: "cmd", "filter", "nsexec",
// "device", "uevent", "container", "supervisor", "shim", "ttyguard".
func GetLogger(module string) *logrus.Entry {
	mutex.RLock()
	if entry, ok := moduleLoggers[module]; ok {
		mutex.RUnlock()
		return entry
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()
	if entry, ok := moduleLoggers[module]; ok {
		return entry
	}
	entry := rootLogger.WithField("module", module)
	moduleLoggers[module] = entry
	return entry
}

// SetLevel changes the root logger's level at runtime. Part of the
// replaceable global logger utility.
func SetLevel(level logrus.Level) {
	mutex.Lock()
	defer mutex.Unlock()
	rootLogger.SetLevel(level)
}

func isStderrAvailable() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || mode.IsRegular()
}
