package db

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

const sqliteParams = "_foreign_keys=on&_busy_timeout=5000"

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqliteParams
	}
	return path + "?" + sqliteParams
}

func openSQLite(ctx context.Context, path string, create bool, log *logger.Logger) (*gorm.DB, error) {
	if !isMemory(path) {
		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			return nil, question.NewError(question.CodeStoreNotFound, "db.open", path+" is a directory", nil)
		case errors.Is(err, fs.ErrNotExist):
			if !create {
				return nil, question.NewError(question.CodeStoreNotFound, "db.open", "no store at "+path, err)
			}
			if dir := filepath.Dir(path); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, question.Wrap(question.CodeIOFailure, "db.open", err)
				}
			}
			log.Info("creating new store")
		case err != nil:
			return nil, question.Wrap(question.CodeIOFailure, "db.open", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig(log))
	if err != nil {
		return nil, question.Wrap(question.CodeIOFailure, "db.open", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, question.Wrap(question.CodeIOFailure, "db.open", err)
	}
	// One writer at a time; an in-memory database only exists on its own connection.
	sqlDB.SetMaxOpenConns(1)

	var fk int
	if err := gdb.WithContext(ctx).Raw("PRAGMA foreign_keys").Scan(&fk).Error; err != nil {
		_ = sqlDB.Close()
		return nil, question.Wrap(question.CodeIOFailure, "db.open", err)
	}
	if fk != 1 {
		if err := gdb.WithContext(ctx).Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			_ = sqlDB.Close()
			return nil, question.Wrap(question.CodeIOFailure, "db.open", err)
		}
	}
	return gdb, nil
}
