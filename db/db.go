package db

import (
	"strings"

	"feedback/models"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects to the configured database. SQL statements are logged through logrus.
func Open(driver, dsn string, echo bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(dsn))
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(echo)})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driver)
	}

	if driver == "sqlite" {
		// One writer at a time; concurrent writers would otherwise see SQLITE_BUSY.
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return conn, nil
}

// sqliteDSN turns on foreign key enforcement, which sqlite leaves off by default.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.User{}, &models.Feedback{}); err != nil {
		return errors.Wrap(err, "migrating schema")
	}
	return nil
}

func Close(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("closing database")
	}
}
