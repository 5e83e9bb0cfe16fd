// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package topologycache

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const supportedVersion uint = 1

//go:embed migrations/*
var migrationFiles embed.FS

// MigrateDB brings the cache schema up to the supported version,
// creating it from scratch on a fresh database file.
func MigrateDB(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("topologycache: migration driver: %w", err)
	}
	d, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return fmt.Errorf("topologycache: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("topologycache: migrate: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("topologycache: migrating schema: %w", err)
	}

	v, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("topologycache: reading schema version: %w", err)
	}
	if v != supportedVersion {
		return fmt.Errorf("topologycache: unsupported schema version %d, need %d", v, supportedVersion)
	}
	return nil
}
