package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/waconnect/pkg/config"
	"github.com/waconnect/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	db          *gorm.DB
	err         error
	client_once sync.Once
)

func InitDB(dbc config.Database) {
	client_once.Do(func() {
		log := logger.Get()
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbc.Host, dbc.Port, dbc.User, dbc.Pass, dbc.Name)
		db, err = gorm.Open(
			postgres.New(
				postgres.Config{
					DSN:                  dsn,
					PreferSimpleProtocol: true,
				},
			),
			&gorm.Config{
				DisableForeignKeyConstraintWhenMigrating: false,
			},
		)
		if err != nil {
			log.Fatalw("failed to initialize database", "error", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalw("failed to get underlying database connection", "error", err)
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)

		if err := sqlDB.Ping(); err != nil {
			log.Fatalw("failed to ping database", "error", err)
		}
		log.Infow("database connection established", "host", dbc.Host, "name", dbc.Name)

		if err := AutoMigrate(db); err != nil {
			log.Fatalw("migration failed", "error", err)
		}
		log.Info("database migrations completed")
	})
}

func DBClient() *gorm.DB {
	if db == nil {
		logger.Get().Panic("Postgres is not initialized. Call InitDB first.")
	}
	return db
}
