// Package db owns the relational store handle: opening a SQLite file or Postgres DSN,
// enforcing referential integrity, applying the schema, and releasing the connection.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type Options struct {
	// Create allows a missing SQLite file (and its parent directory) to be created.
	Create bool
	// SkipSchema opens the store without applying DDL.
	SkipSchema bool
	Log        *logger.Logger
}

// Store is an open connection to the question store. It is safe for concurrent use but a
// SQLite store serialises everything through a single connection.
type Store struct {
	db       *gorm.DB
	dialect  Dialect
	location string
	log      *logger.Logger
}

// Open connects to location. A location starting with postgres:// or postgresql:// is a Postgres
// DSN; anything else is a SQLite file path. A missing SQLite file is a store_not_found error unless
// opts.Create is set.
func Open(ctx context.Context, location string, opts Options) (*Store, error) {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, question.NewError(question.CodeStoreNotFound, "db.open", "empty store location", nil)
	}

	dialect := DialectSQLite
	if IsPostgresLocation(location) {
		dialect = DialectPostgres
	}
	storeLog := log.With("store", location, "dialect", string(dialect))

	var (
		gdb *gorm.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		gdb, err = openPostgres(ctx, location, storeLog)
	default:
		gdb, err = openSQLite(ctx, location, opts.Create, storeLog)
	}
	if err != nil {
		return nil, err
	}

	s := &Store{db: gdb, dialect: dialect, location: location, log: storeLog}
	if !opts.SkipSchema {
		if err := EnsureSchema(ctx, gdb, dialect); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	storeLog.Debug("store opened")
	return s, nil
}

// WithStore opens location, runs fn and always releases the connection, including when fn
// returns an error or panics.
func WithStore(ctx context.Context, location string, opts Options, fn func(*Store) error) (err error) {
	s, err := Open(ctx, location, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func (s *Store) DB() *gorm.DB        { return s.db }
func (s *Store) Dialect() Dialect    { return s.dialect }
func (s *Store) Location() string    { return s.location }
func (s *Store) Log() *logger.Logger { return s.log }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return question.Wrap(question.CodeIOFailure, "db.close", err)
	}
	if err := sqlDB.Close(); err != nil {
		return question.Wrap(question.CodeIOFailure, "db.close", err)
	}
	s.log.Debug("store closed")
	return nil
}

// QueryMaps runs a raw read and returns each row as a column-name keyed map.
func (s *Store) QueryMaps(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	var out []map[string]interface{}
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&out).Error; err != nil {
		return nil, question.Wrap(question.CodeIOFailure, "db.query_maps", err)
	}
	return out, nil
}

func IsPostgresLocation(location string) bool {
	l := strings.ToLower(strings.TrimSpace(location))
	return strings.HasPrefix(l, "postgres://") || strings.HasPrefix(l, "postgresql://")
}

// gormWriter routes gorm's own warnings (slow queries, driver errors) into the structured logger.
type gormWriter struct {
	log *logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func gormConfig(log *logger.Logger) *gorm.Config {
	return &gorm.Config{
		Logger: gormLogger.New(gormWriter{log: log.With("component", "gorm")}, gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}
