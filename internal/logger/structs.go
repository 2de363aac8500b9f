package logger

// Console implements a console based logger.
type Console struct {
	Enabled          bool `mapstructure:"enabled"`
	UseConsoleWriter bool `mapstructure:"useConsoleWriter"`
}

// RollingFile configures one lumberjack file.
type RollingFile struct {
	Name       string `mapstructure:"name"`
	MaxSize    int    `mapstructure:"maxSize"` // megabytes
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"` // days
}

// LogFile implements a file based logger with one file per level group.
type LogFile struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`

	Access RollingFile `mapstructure:"access"`
	Error  RollingFile `mapstructure:"error"`
	Info   RollingFile `mapstructure:"info"`
	Trace  RollingFile `mapstructure:"trace"`
	Warn   RollingFile `mapstructure:"warn"`
}

// Log implements the logger config.
type Log struct {
	LogLevel string `mapstructure:"logLevel"` // trace, debug, info, warn, error.
	LogEnv   string `mapstructure:"logEnv"`

	// EnableAccessLogToConsole writes the HTTP access log to stdout.
	// Has no effect while Console.Enabled is false.
	EnableAccessLogToConsole bool `mapstructure:"enableAccessLogToConsole"`
	ReportCaller             bool `mapstructure:"reportCaller"`
	DisableHealthLog         bool `mapstructure:"disableHealthLog"` // do not log /health calls

	AppName     string `mapstructure:"appName"`
	ServiceName string `mapstructure:"serviceName"`

	// Console used mainly for docker and dev.
	Console Console `mapstructure:"console"`

	File LogFile `mapstructure:"file"`
}
