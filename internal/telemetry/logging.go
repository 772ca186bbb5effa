package telemetry

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// SetupLogging configures the process-wide logrus logger. Logs go to w, which
// is stderr for the CLI so stdout stays reserved for envelopes.
func SetupLogging(level, format string, w io.Writer) error {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log format must be text or json")
	}
	logrus.SetOutput(w)
	logrus.SetLevel(lvl)
	return nil
}

// Logger returns the component-scoped entry used by internal packages.
func Logger(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
