// Package migrations registers the embedded bookswap schema with a
// dialect-aware migration runner such as go-persistence-bun.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	bookswap "github.com/goliatone/go-bookswap"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	sourceLabel = "go-bookswap"
	rootDir     = "data/sql/migrations"
)

// FilesystemSpec is the migration tree of one dialect. Path is relative to
// the embedded root.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

// WithValidationTargets limits registration to the named dialects. Unknown
// names are kept so Register can reject them.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		var next []string
		for _, target := range targets {
			target = strings.TrimSpace(strings.ToLower(target))
			if target != "" && !slices.Contains(next, target) {
				next = append(next, target)
			}
		}
		if len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

// Filesystems returns the Postgres tree (the root directory) and the SQLite
// tree (its sqlite/ subdirectory). Each must contain at least one up file.
func Filesystems() ([]FilesystemSpec, error) {
	root := bookswap.GetMigrationsFS()
	layout := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: rootDir},
		{Dialect: DialectSQLite, Path: rootDir + "/sqlite"},
	}
	for i := range layout {
		sub, err := fs.Sub(root, layout[i].Path)
		if err != nil {
			return nil, fmt.Errorf("migrations: open %s tree: %w", layout[i].Dialect, err)
		}
		versions, err := Versions(sub)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", layout[i].Dialect, layout[i].Path)
		}
		layout[i].FS = sub
	}
	return layout, nil
}

// Register hands each targeted dialect tree to registerFn, Postgres first.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       sourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	for _, target := range reg.ValidationTargets {
		if target != DialectPostgres && target != DialectSQLite {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", target)
		}
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, tree := range filesystems {
		if !slices.Contains(reg.ValidationTargets, tree.Dialect) {
			continue
		}
		if err := registerFn(ctx, tree.Dialect, reg.SourceLabel, tree.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s: %w", tree.Dialect, err)
		}
	}
	return reg, nil
}

// Versions lists the up migrations of one dialect tree by version name,
// oldest first.
func Versions(fsys fs.FS) ([]string, error) {
	if fsys == nil {
		return nil, fmt.Errorf("migrations: filesystem is required")
	}
	matches, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob versions: %w", err)
	}
	versions := make([]string, 0, len(matches))
	for _, match := range matches {
		versions = append(versions, strings.TrimSuffix(match, ".up.sql"))
	}
	slices.Sort(versions)
	return versions, nil
}

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}
