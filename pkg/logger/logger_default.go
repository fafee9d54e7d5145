package logger

import "sync"

type LoggerArg struct {
	Key   string
	Value string
}

type GlobalLoggerConfig struct {
	Args []LoggerArg
}

var (
	defaultLogger     *Logger
	onceLogger        sync.Once
	initializedLogger bool
)

func InitDefaultLogger(config GlobalLoggerConfig) {
	onceLogger.Do(func() {
		defaultLogger = New()
		for _, arg := range config.Args {
			defaultLogger.zl = defaultLogger.With().Str(arg.Key, arg.Value).Logger()
		}

		initializedLogger = true
	})
}

func Default() *Logger {
	if !initializedLogger {
		// Fall back to a plain logger so library code can log before main wiring.
		InitDefaultLogger(GlobalLoggerConfig{})
	}
	return defaultLogger
}
