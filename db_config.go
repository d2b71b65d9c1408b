// db_config.go: SQLite backed configuration persistence
//
// DBConfig stores flat key/value configuration data in a SQLite database
// so settings survive process restarts. It can also snapshot a whole
// hierarchical Configuration into the database and restore it later.
// The database runs in WAL mode with a busy timeout, so several
// processes can share one settings file safely.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// DBOptions configures the schema the store operates on. Zero fields are
// filled by WithDefaults. With NameColumn set, several named
// configurations share one table and every statement is scoped to Name.
type DBOptions struct {
	Table       string
	KeyColumn   string
	ValueColumn string
	TimeColumn  string
	NameColumn  string
	Name        string
}

// WithDefaults returns a copy with unset fields filled in.
func (o DBOptions) WithDefaults() DBOptions {
	if o.Table == "" {
		o.Table = "settings"
	}
	if o.KeyColumn == "" {
		o.KeyColumn = "key"
	}
	if o.ValueColumn == "" {
		o.ValueColumn = "value"
	}
	if o.TimeColumn == "" {
		o.TimeColumn = "updated_at"
	}
	return o
}

// DBConfig is a flat, persistent key/value configuration store.
type DBConfig struct {
	db      *sql.DB
	path    string
	opts    DBOptions
	setStmt *sql.Stmt
	getStmt *sql.Stmt
	mu      sync.RWMutex
	closed  bool
}

// OpenDB opens or creates the configuration database at the given path
// with the default schema.
func OpenDB(path string) (*DBConfig, error) {
	return OpenDBWithOptions(path, DBOptions{})
}

// OpenDBWithOptions opens or creates the configuration database using a
// custom schema. Identifier fields must be trusted values; they are
// interpolated into the DDL and statements.
func OpenDBWithOptions(path string, opts DBOptions) (*DBConfig, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrap(err, ErrCodeStorageError, "failed to create configuration database directory")
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path))
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeStorageError, "failed to open configuration database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, ErrCodeStorageError, "failed to ping configuration database")
	}

	d := &DBConfig{db: db, path: path, opts: opts.WithDefaults()}
	if err := d.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DBConfig) initialize() error {
	o := d.opts
	keyCols := o.KeyColumn
	nameDDL := ""
	if o.NameColumn != "" {
		nameDDL = fmt.Sprintf("%s TEXT NOT NULL, ", o.NameColumn)
		keyCols = o.NameColumn + ", " + o.KeyColumn
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		%[2]s%[3]s TEXT NOT NULL,
		%[4]s TEXT NOT NULL,
		%[5]s INTEGER NOT NULL,
		PRIMARY KEY (%[6]s)
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_updated ON %[1]s(%[5]s);`,
		o.Table, nameDDL, o.KeyColumn, o.ValueColumn, o.TimeColumn, keyCols)
	if _, err := d.db.Exec(schema); err != nil {
		return errors.Wrap(err, ErrCodeStorageError, "failed to create settings schema")
	}

	var upsert, lookup string
	if o.NameColumn != "" {
		upsert = fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s, %[5]s) VALUES (?, ?, ?, ?)
			ON CONFLICT(%[2]s, %[3]s) DO UPDATE SET %[4]s = excluded.%[4]s, %[5]s = excluded.%[5]s`,
			o.Table, o.NameColumn, o.KeyColumn, o.ValueColumn, o.TimeColumn)
		lookup = fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND %s = ?`,
			o.ValueColumn, o.Table, o.NameColumn, o.KeyColumn)
	} else {
		upsert = fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s) VALUES (?, ?, ?)
			ON CONFLICT(%[2]s) DO UPDATE SET %[3]s = excluded.%[3]s, %[4]s = excluded.%[4]s`,
			o.Table, o.KeyColumn, o.ValueColumn, o.TimeColumn)
		lookup = fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
			o.ValueColumn, o.Table, o.KeyColumn)
	}

	var err error
	d.setStmt, err = d.db.Prepare(upsert)
	if err != nil {
		return errors.Wrap(err, ErrCodeStorageError, "failed to prepare settings upsert")
	}
	d.getStmt, err = d.db.Prepare(lookup)
	if err != nil {
		return errors.Wrap(err, ErrCodeStorageError, "failed to prepare settings lookup")
	}
	return nil
}

// setArgs prepends the configuration name when the store is name scoped.
func (d *DBConfig) setArgs(key string, value string, now int64) []interface{} {
	if d.opts.NameColumn != "" {
		return []interface{}{d.opts.Name, key, value, now}
	}
	return []interface{}{key, value, now}
}

func (d *DBConfig) getArgs(key string) []interface{} {
	if d.opts.NameColumn != "" {
		return []interface{}{d.opts.Name, key}
	}
	return []interface{}{key}
}

func (d *DBConfig) checkOpen() error {
	if d.closed {
		return errors.New(ErrCodeStorageError, "configuration database is closed")
	}
	return nil
}

// Set stores a value under the key, replacing any previous value.
// Values are persisted in string form.
func (d *DBConfig) Set(key string, value interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	_, err := d.setStmt.Exec(d.setArgs(key, ToString(value), timecache.CachedTimeNano())...)
	if err != nil {
		return errors.Wrap(err, ErrCodeStorageError, "failed to store setting").WithContext("key", key)
	}
	return nil
}

// Get returns the stored value for the key.
func (d *DBConfig) Get(key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return "", err
	}
	var value string
	err := d.getStmt.QueryRow(d.getArgs(key)...).Scan(&value)
	if err == sql.ErrNoRows {
		return "", errors.New(ErrCodeKeyNotFound, "key not found").WithContext("key", key)
	}
	if err != nil {
		return "", errors.Wrap(err, ErrCodeStorageError, "failed to read setting").WithContext("key", key)
	}
	return value, nil
}

// GetDefault returns the stored value or def when the key is missing.
func (d *DBConfig) GetDefault(key, def string) string {
	v, err := d.Get(key)
	if err != nil {
		return def
	}
	return v
}

// GetInt returns the stored value converted to an int.
func (d *DBConfig) GetInt(key string) (int, error) {
	v, err := d.Get(key)
	if err != nil {
		return 0, err
	}
	return ToInt(v)
}

// GetBool returns the stored value converted to a bool.
func (d *DBConfig) GetBool(key string) (bool, error) {
	v, err := d.Get(key)
	if err != nil {
		return false, err
	}
	return ToBool(v)
}

// Contains reports whether the key exists in the store.
func (d *DBConfig) Contains(key string) bool {
	_, err := d.Get(key)
	return err == nil
}

// Clear removes the key from the store. Clearing a missing key is not an
// error.
func (d *DBConfig) Clear(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	del := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, d.opts.Table, d.opts.KeyColumn)
	args := []interface{}{key}
	if d.opts.NameColumn != "" {
		del += fmt.Sprintf(` AND %s = ?`, d.opts.NameColumn)
		args = append(args, d.opts.Name)
	}
	_, err := d.db.Exec(del, args...)
	if err != nil {
		return errors.Wrap(err, ErrCodeStorageError, "failed to delete setting").WithContext("key", key)
	}
	return nil
}

// Keys returns all stored keys, optionally restricted to a prefix.
func (d *DBConfig) Keys(prefix string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	list := fmt.Sprintf(`SELECT %s FROM %s`, d.opts.KeyColumn, d.opts.Table)
	var args []interface{}
	if d.opts.NameColumn != "" {
		list += fmt.Sprintf(` WHERE %s = ?`, d.opts.NameColumn)
		args = append(args, d.opts.Name)
	}
	list += fmt.Sprintf(` ORDER BY %s`, d.opts.KeyColumn)
	rows, err := d.db.Query(list, args...)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeStorageError, "failed to list settings")
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, ErrCodeStorageError, "failed to scan setting key")
		}
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeStorageError, "failed to iterate settings")
	}
	return keys, nil
}

// Save persists every key of the configuration into the store inside a
// single transaction.
func (d *DBConfig) Save(c *Configuration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}

	tx, err := d.db.Begin()
	if err != nil {
		return errors.Wrap(err, ErrCodeStorageError, "failed to begin save transaction")
	}
	now := timecache.CachedTimeNano()
	for _, key := range c.Keys() {
		value := c.Property(key)
		if value == nil {
			continue
		}
		if _, err := tx.Stmt(d.setStmt).Exec(d.setArgs(key, ToString(value), now)...); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, ErrCodeStorageError, "failed to save configuration key").WithContext("key", key)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, ErrCodeStorageError, "failed to commit save transaction")
	}
	return nil
}

// Load reads every stored key into a fresh Configuration.
func (d *DBConfig) Load() (*Configuration, error) {
	keys, err := d.Keys("")
	if err != nil {
		return nil, err
	}
	c := New()
	for _, key := range keys {
		value, err := d.Get(key)
		if err != nil {
			return nil, err
		}
		if err := c.Add(key, value); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Close releases the database resources. The store must not be used
// after Close.
func (d *DBConfig) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.setStmt != nil {
		_ = d.setStmt.Close()
	}
	if d.getStmt != nil {
		_ = d.getStmt.Close()
	}
	if err := d.db.Close(); err != nil {
		return errors.Wrap(err, ErrCodeStorageError, "failed to close configuration database")
	}
	return nil
}
