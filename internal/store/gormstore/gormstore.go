package gormstore

import (
	"context"
	"database/sql/driver"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the relational backend, postgres in production and sqlite for small installs and tests
type Store struct {
	db *gorm.DB
}

// Open connects to the database described by cfg and migrates the schema
func Open(cfg config.DBConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.Dsn)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Dsn)
	default:
		return nil, errors.Errorf("gormstore: unsupported database type %q", cfg.Type)
	}

	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(domain.ErrUnavailable, err.Error())
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.IdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
	}
	if cfg.Type != "postgres" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection, the caller runs Migrate
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Name() string {
	return s.db.Dialector.Name()
}

// Migrate creates or updates the tables
func (s *Store) Migrate() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("migrate panic: %v", r)
		}
	}()
	tables := append([]interface{}{}, domain.Tables...)
	tables = append(tables, &orderRow{})
	if err := s.db.Migrator().AutoMigrate(tables...); err != nil {
		zap.L().Error("gormstore: migrate failed", zap.Error(err))
		return errors.Wrap(err, "migrate")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(domain.ErrUnavailable, err.Error())
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(domain.ErrUnavailable, err.Error())
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps driver errors onto the store taxonomy
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrDuplicateKey),
		errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnavailable):
		return errors.WithMessage(err, op)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(domain.ErrNotFound, op)
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return errors.Wrap(domain.ErrDuplicateKey, op)
	case isUnavailable(err):
		return errors.Wrapf(domain.ErrUnavailable, "%s: %v", op, err)
	default:
		return errors.Wrap(err, op)
	}
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "database is locked", "broken pipe", "sql: database is closed", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
