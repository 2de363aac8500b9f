package config

// DB holds the webhook token database settings.
type DB struct {
	// GormEngine is mysql (default), postgres or sqlite.
	GormEngine string
	Host       string
	Port       int
	User       string
	Password   string
	// Name is the database name, or the file path for sqlite.
	Name string
	// Extras is appended to the DSN: query parameters for mysql and sqlite,
	// key=value pairs for postgres.
	Extras string
}
