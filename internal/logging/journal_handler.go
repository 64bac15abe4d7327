package logging

import (
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

// journalHook is a logrus.Hook that mirrors every log entry to the systemd
// journal.
type journalHook struct{}

func newJournalHook() *journalHook {
	return &journalHook{}
}

func (h *journalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *journalHook) Fire(entry *logrus.Entry) error {
	priority := mapLevelToPriority(entry.Level)

	fields := make(map[string]string, len(entry.Data)+1)
	fields["SYSLOG_IDENTIFIER"] = "container-hotplug"
	for k, v := range entry.Data {
		fields[strings.ToUpper(k)] = fmt.Sprint(v)
	}

	return journal.Send(entry.Message, priority, fields)
}

func mapLevelToPriority(level logrus.Level) journal.Priority {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return journal.PriCrit
	case logrus.ErrorLevel:
		return journal.PriErr
	case logrus.WarnLevel:
		return journal.PriWarning
	case logrus.InfoLevel:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// IsJournalAvailable reports whether the systemd journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
