package logging

import (
	"log/syslog"

	"github.com/sirupsen/logrus"
)

// syslogHook mirrors every log entry to the local syslog daemon over the
// datagram socket /dev/log, facility LOG_USER.
type syslogHook struct {
	writer *syslog.Writer
}

func newSyslogHook() (*syslogHook, error) {
	w, err := syslog.New(syslog.LOG_USER, "container-hotplug")
	if err != nil {
		return nil, err
	}
	return &syslogHook{writer: w}, nil
}

func (h *syslogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *syslogHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		line = entry.Message
	}
	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return h.writer.Crit(line)
	case logrus.ErrorLevel:
		return h.writer.Err(line)
	case logrus.WarnLevel:
		return h.writer.Warning(line)
	case logrus.InfoLevel:
		return h.writer.Info(line)
	default:
		return h.writer.Debug(line)
	}
}
