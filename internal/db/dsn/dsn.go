// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/oslokommune/okdata-permission-api/internal/config"
)

// Supported values of config.DB.GormEngine.
const (
	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

// ErrUnknownEngine is returned for an unsupported gorm engine.
var ErrUnknownEngine = errors.New("unknown gorm engine")

// Create builds the Data Source Name for the configured engine.
// For sqlite the database name is the file path.
func Create(db config.DB) string {
	switch strings.ToLower(db.GormEngine) {
	case EnginePostgres:
		out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			db.Host,
			db.Port,
			db.User,
			db.Password,
			db.Name,
		)

		if db.Extras != "" {
			out += " " + db.Extras
		}

		return out
	case EngineSQLite:
		if db.Extras != "" {
			return db.Name + "?" + db.Extras
		}

		return db.Name
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			db.User,
			db.Password,
			db.Host,
			db.Port,
			db.Name,
			db.Extras,
		)
	}
}

// Dialector returns the gorm dialector of the configured engine. An empty engine means mysql.
func Dialector(db config.DB) (gorm.Dialector, error) {
	switch strings.ToLower(db.GormEngine) {
	case EngineMySQL, "":
		return mysql.Open(Create(db)), nil
	case EnginePostgres:
		return postgres.Open(Create(db)), nil
	case EngineSQLite:
		return sqlite.Open(Create(db)), nil
	default:
		return nil, errors.Wrap(ErrUnknownEngine, db.GormEngine)
	}
}
