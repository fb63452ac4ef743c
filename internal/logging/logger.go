package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// AllocatorComponent tags every entry of the allocator logger.
const AllocatorComponent = "pucch_alloc"

var logger *logrus.Logger
var allocatorLogger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	})
	logger.SetLevel(logrus.InfoLevel)

	// Allocation decisions are logged per UE attach/detach and are noisy at
	// cell scale, so they get their own logger and level.
	allocatorLogger = logrus.New()
	allocatorLogger.SetOutput(os.Stdout)
	allocatorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "pucch_msg",
		},
	})
	allocatorLogger.SetLevel(logrus.WarnLevel)
}

func GetLogger() *logrus.Logger {
	return logger
}

// GetAllocatorLogger returns the entry used by the PUCCH resource manager,
// tagged with the allocator component.
func GetAllocatorLogger() *logrus.Entry {
	return allocatorLogger.WithField("component", AllocatorComponent)
}

// AllocatorForCell returns the allocator entry with cell_index set.
func AllocatorForCell(cellIndex int) *logrus.Entry {
	return GetAllocatorLogger().WithField("cell_index", cellIndex)
}

func SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(logLevel)
	return nil
}

func SetAllocatorLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	allocatorLogger.SetLevel(logLevel)
	return nil
}

func SetFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
	allocatorLogger.SetFormatter(formatter)
}

func SetOutput(out io.Writer) {
	logger.SetOutput(out)
	allocatorLogger.SetOutput(out)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
