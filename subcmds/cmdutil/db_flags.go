// Copyright (c) 2023 BVK Chaitanya

package cmdutil

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"path"

	"github.com/bvk/candlebot/kvutil"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvhttp"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
)

// DBFlags selects the database for the db commands. Database is opened from
// a backup file, a local data directory or the db api of a running service,
// in that order of preference.
type DBFlags struct {
	ClientFlags

	dbURLPath string

	dataDir string

	fromBackup string

	backupBefore string
	backupAfter  string
}

func (f *DBFlags) SetFlags(fset *flag.FlagSet) {
	fset.StringVar(&f.dataDir, "data-dir", "", "Path to the database directory (db subdirectory of the service data directory)")

	fset.StringVar(&f.fromBackup, "from-backup", "", "Path to a database backup file")

	f.ClientFlags.SetFlags(fset)
	fset.StringVar(&f.dbURLPath, "db-url-path", "/db", "path to db api handler")

	fset.StringVar(&f.backupBefore, "backup-before", "", "Path to a file to receive db backup before cmd is run")
	fset.StringVar(&f.backupAfter, "backup-after", "", "Path to a file to receive db backup after cmd is run")
}

func (f *DBFlags) dbCloser(db kv.Database, close func() error) func() {
	return func() {
		if len(f.backupAfter) != 0 {
			if err := kvutil.BackupDB(context.Background(), db, f.backupAfter); err != nil {
				slog.Error("could not take db backup after it is used (ignored)", "err", err)
			}
		}
		if close != nil {
			if err := close(); err != nil {
				slog.Error("could not close the database (ignored)", "err", err)
			}
		}
	}
}

// IsRemoteDatabase returns true if target database is a remote database over
// http.
func (f *DBFlags) IsRemoteDatabase() bool {
	return f.fromBackup == "" && f.dataDir == ""
}

// GetDatabase opens the selected database. Returned closer must be called
// after the database is no longer used.
func (f *DBFlags) GetDatabase(ctx context.Context) (db kv.Database, closer func(), status error) {
	defer func() {
		if status == nil && len(f.backupBefore) != 0 {
			if err := kvutil.BackupDB(ctx, db, f.backupBefore); err != nil {
				closer()
				db, closer, status = nil, nil, fmt.Errorf("could not take a db backup before it is used: %w", err)
			}
		}
	}()

	if len(f.fromBackup) != 0 {
		db := kvmemdb.New()
		if err := kvutil.RestoreDB(ctx, db, f.fromBackup); err != nil {
			return nil, nil, fmt.Errorf("could not restore in-memory db from backup %q: %w", f.fromBackup, err)
		}
		return db, f.dbCloser(db, nil), nil
	}

	if len(f.dataDir) != 0 {
		bdb, err := OpenBadger(f.dataDir)
		if err != nil {
			return nil, nil, err
		}
		db := kvbadger.New(bdb, IsGoodKey)
		return db, f.dbCloser(db, bdb.Close), nil
	}

	addrURL := f.ClientFlags.AddressURL()
	addrURL.Path = path.Join(addrURL.Path, f.dbURLPath)
	db = kvhttp.New(addrURL, f.ClientFlags.HttpClient())
	return db, f.dbCloser(db, nil), nil
}

// OpenBadger opens the badger database in a data directory. Badger's own
// logging is routed to the default slog logger.
func OpenBadger(dir string) (*badger.DB, error) {
	bopts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	bdb, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("could not open the database in %q: %w", dir, err)
	}
	return bdb, nil
}

// IsGoodKey returns true if the key is a clean absolute path.
func IsGoodKey(k string) bool {
	return path.IsAbs(k) && k == path.Clean(k)
}

type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...), "db", "badger")
}

func (badgerLogger) Warningf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "db", "badger")
}

func (badgerLogger) Infof(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "db", "badger")
}

func (badgerLogger) Debugf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "db", "badger")
}
