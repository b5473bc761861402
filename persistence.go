package auth

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// RegisterModels registers the package models with bun. The junction
// tables must be known before any query touches an m2m relation.
func RegisterModels(db *bun.DB) {
	db.RegisterModel(
		(*UserRoleAssignment)(nil),
		(*RolePermission)(nil),
		(*User)(nil),
		(*Role)(nil),
		(*Permission)(nil),
		(*RefreshSession)(nil),
		(*PasswordReset)(nil),
		(*SecurityEvent)(nil),
	)
}

// OpenSQLite opens a SQLite-backed bun handle with the package models
// registered. DSN ":memory:" is handy for tests and examples.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	RegisterModels(db)

	return db, nil
}

// CreateSchema creates the tables for every package model. Intended for
// examples and tests; production deployments should run managed
// migrations instead.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*User)(nil),
		(*Role)(nil),
		(*Permission)(nil),
		(*UserRoleAssignment)(nil),
		(*RolePermission)(nil),
		(*RefreshSession)(nil),
		(*PasswordReset)(nil),
		(*SecurityEvent)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table")
		}
	}

	return nil
}
