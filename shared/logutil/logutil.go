// Package logutil configures process-wide logrus output, mirroring the
// single multi-writer setup every Prysm-era binary installs before
// starting its service registry.
package logutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ConfigurePersistentLogging tees stdout logging into logFileName as well,
// so operators get an on-disk copy with identical content to the console.
func ConfigurePersistentLogging(logFileName string) error {
	logrus.WithField("logFileName", logFileName).Info("Logs will be made persistent")
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	logrus.Info("File logging initialized")
	return nil
}

// ConfigureVerbosity sets the global logrus level from a CLI-provided
// string. An unrecognized value returns the parse error and leaves the
// level unchanged.
func ConfigureVerbosity(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	return nil
}
