package logger

import "time"

// Console implements a console based logger.
type Console struct {
	Enabled          bool `mapstructure:"enabled"`
	UseConsoleWriter bool
}

// LogFile implements a rolling file based logger, one file per level band plus the access log.
type LogFile struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`

	AccessLog string `mapstructure:"access"`
	ErrorLog  string `mapstructure:"error"`
	WarnLog   string `mapstructure:"warn"`
	InfoLog   string `mapstructure:"info"`
	TraceLog  string `mapstructure:"trace"`

	// Rotation applies to every file.
	MaxSize    int  `mapstructure:"maxSize"`    // megabytes
	MaxBackups int  `mapstructure:"maxBackups"` // files kept
	MaxAge     int  `mapstructure:"maxAge"`     // days
	Compress   bool `mapstructure:"compress"`
}

// DataDog implements a datadog config.
type DataDog struct {
	ServiceName string        `mapstructure:"serviceName"`
	APIKey      string        `mapstructure:"apiKey"` // API Key defined at datadog
	Enabled     bool          `mapstructure:"enabled"`
	Site        string        `mapstructure:"site"`    // Regional Site aka DD_SITE ("datadoghq.eu")
	Timeout     time.Duration `mapstructure:"timeout"` // how long to wait to send a log entry to datadog.
}

// Log implements the logger config.
type Log struct {
	LogLevel string // info, warn, error.
	LogEnv   string

	// EnableAccessLogToConsole writes http access logs to the console.
	// Does not overrule flag Console.Enabled.
	EnableAccessLogToConsole bool
	ReportCaller             bool
	DisableCheckAlive        bool // do not log /healthz calls

	AppName     string
	ServiceName string

	// Console used mainly for docker and dev.
	Console Console

	// Legacy non docker env file logging.
	File LogFile `mapstructure:"file"`

	// DataDog ships audit events to Datadog Logs when enabled.
	DataDog DataDog
}
