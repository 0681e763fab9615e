package types

// Logger used across the protocol. The user can provide its
// own implementation, a default one exists backed by the
// standard library and another backed by logrus.
type Logger interface {
	Info(v ...interface{})

	Infof(format string, v ...interface{})

	Warn(v ...interface{})

	Warnf(format string, v ...interface{})

	Error(v ...interface{})

	Errorf(format string, v ...interface{})

	Debug(v ...interface{})

	Debugf(format string, v ...interface{})

	// Enable or disable the debug level, returning the
	// value that is now set.
	ToggleDebug(value bool) bool

	Fatal(v ...interface{})

	Fatalf(format string, v ...interface{})
}
