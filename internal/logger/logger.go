package logger

import "sync"

// LoggerInstance defines the interface for logging backends.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger dispatches log calls to every configured backend.
type Logger struct {
	instances []LoggerInstance
}

var (
	mu        sync.RWMutex
	singleton *Logger
)

func getSingleton() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return singleton
}

// Init installs the global logger. Calls made before Init are dropped,
// so packages can log unconditionally.
func Init(instances ...LoggerInstance) {
	mu.Lock()
	defer mu.Unlock()
	singleton = &Logger{instances: instances}
}

// Log writes a message at the default level to all backends.
func Log(message string, keyvals ...any) {
	if l := getSingleton(); l != nil {
		for _, instance := range l.instances {
			instance.Log(message, keyvals...)
		}
	}
}

// Info writes a message at INFO level to all backends.
func Info(message string, keyvals ...any) {
	if l := getSingleton(); l != nil {
		for _, instance := range l.instances {
			instance.Info(message, keyvals...)
		}
	}
}

// Warn writes a message at WARN level to all backends.
func Warn(message string, keyvals ...any) {
	if l := getSingleton(); l != nil {
		for _, instance := range l.instances {
			instance.Warn(message, keyvals...)
		}
	}
}

// Error writes a message at ERROR level to all backends.
func Error(message string, keyvals ...any) {
	if l := getSingleton(); l != nil {
		for _, instance := range l.instances {
			instance.Error(message, keyvals...)
		}
	}
}

// Debug writes a message at DEBUG level to all backends.
func Debug(message string, keyvals ...any) {
	if l := getSingleton(); l != nil {
		for _, instance := range l.instances {
			instance.Debug(message, keyvals...)
		}
	}
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	if l := getSingleton(); l != nil {
		for _, instance := range l.instances {
			instance.Fatal(message, keyvals...)
		}
	}
}
