package config

// DB holds the database configuration settings.
type DB struct {
	Driver   string `validate:"omitempty,oneof=sqlite mysql postgres"`
	Path     string // sqlite file, ":memory:" for tests
	Extras   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	// LogLevel of gorm statements: silent, error, warn, info.
	LogLevel string
}
