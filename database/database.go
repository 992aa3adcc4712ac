package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecoheat/config"
	"ecoheat/models"
	"ecoheat/repositories"
	"ecoheat/repositories/interfaces"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger adapts slog to be used as a GORM logger.
type gormLogger struct {
	slogger *slog.Logger
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return l
}
func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.slogger.InfoContext(ctx, msg, "gorm_data", data)
}
func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.slogger.WarnContext(ctx, msg, "gorm_data", data)
}
func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.slogger.ErrorContext(ctx, msg, "gorm_data", data)
}
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("latency", elapsed.String()),
		slog.String("sql", sql),
		slog.Int64("rows_affected", rows),
	}

	// Record-not-found is a normal lookup outcome here (no reading yet, no slot).
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		attrs = append(attrs, slog.Any("error", err))
		l.slogger.LogAttrs(ctx, slog.LevelError, "GORM Trace", attrs...)
	} else {
		l.slogger.LogAttrs(ctx, slog.LevelDebug, "GORM Trace", attrs...)
	}
}

// Database holds the DB connection, all repository instances, and the UnitOfWork.
type Database struct {
	DB           *gorm.DB
	UoW          UnitOfWorkInterface
	RoomRepo     interfaces.RoomRepositoryInterface
	ReadingRepo  interfaces.ReadingRepositoryInterface
	DeviceRepo   interfaces.DeviceStatusRepositoryInterface
	ScheduleRepo interfaces.ScheduleRepositoryInterface
}

// NewDatabase connects using the configured driver, migrates the schema and
// initializes repositories.
func NewDatabase(cfg *config.Config, appLogger *slog.Logger) (*Database, error) {
	dbLogger := appLogger.With("component", "database")

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dbLogger.Info("Opening sqlite database...", "path", cfg.DBPath)
		dialector = sqlite.Open(cfg.DBPath)
	default:
		dbLogger.Info("Connecting to database...", "host", cfg.DBHost, "port", cfg.DBPort, "user", cfg.DBUser)
		dialector = postgres.Open(cfg.DSN())
	}
	return Open(dialector, dbLogger)
}

// Open runs migrations on an arbitrary dialector. Tests pass an in-memory
// sqlite dialector.
func Open(dialector gorm.Dialector, dbLogger *slog.Logger) (*Database, error) {
	newGormLogger := &gormLogger{slogger: dbLogger}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	dbLogger.Info("Database connected successfully")

	if db.Dialector.Name() == "sqlite" {
		// sqlite allows a single writer at a time.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	dbLogger.Info("Database migration completed successfully")

	return &Database{
		DB:           db,
		UoW:          NewUnitOfWork(db),
		RoomRepo:     repositories.NewRoomRepository(db),
		ReadingRepo:  repositories.NewReadingRepository(db),
		DeviceRepo:   repositories.NewDeviceStatusRepository(db),
		ScheduleRepo: repositories.NewScheduleRepository(db),
	}, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{}, &models.Room{},
		&models.SensorReading{}, &models.DeviceStatus{},
		&models.Schedule{}, &models.RoomSchedule{}, &models.TimeSlot{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks the underlying connection. Used by the health endpoint.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
