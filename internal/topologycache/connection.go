// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package topologycache is the compile cache: a SQLite database keyed
// by a hash of the input module, storing the serialized topology (the
// setup interpreter's output) and the per-kernel code metrics, so a
// repeated compile of an unchanged setup function skips
// re-interpretation.
package topologycache

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/Xilinx/nanotube-sub001/pkg/log"
)

var registerDriverOnce sync.Once

// Cache is one open compile-cache database.
type Cache struct {
	DB *sqlx.DB
}

// Open connects to (creating if needed) the cache database at path and
// brings its schema up to date. The driver is wrapped with query hooks
// so every cache query shows up in the debug log.
func Open(path string) (*Cache, error) {
	registerDriverOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))
	})

	db, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("topologycache: opening %s: %w", path, err)
	}

	// sqlite does not multithread. Having more than one connection open
	// would just mean waiting for locks.
	db.SetMaxOpenConns(1)

	if err := MigrateDB(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("topologycache: opened %s", path)
	return &Cache{DB: db}, nil
}

func (c *Cache) Close() error { return c.DB.Close() }
