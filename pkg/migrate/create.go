package migrate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const versionLayout = "20060102150405"

var (
	slugUnsafeRe = regexp.MustCompile(`[^a-z0-9]+`)

	sqlTemplate = template.Must(template.New("migration").Parse(`-- +goose Up
-- {{.Slug}}
-- Runs on postgres and sqlite: use CURRENT_TIMESTAMP, CHECK (... IN (...))
-- for enums and keep ids generated by the application.
-- +goose StatementBegin
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- undo {{.Slug}}
-- +goose StatementEnd
`))

	now = time.Now
)

// CreateSQLMigration writes an empty goose migration named
// <dir>/<YYYYMMDDHHMMSS>_<slug>.sql and returns its path.
//
// The version is bumped past the newest existing migration so files created
// in the same second, or on a machine with a lagging clock, still sort after it.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("migrations dir is required")
	}
	s := slug(name)
	if s == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	version, err := nextVersion(dir, now().UTC())
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, version.Format(versionLayout)+"_"+s+".sql")

	var body bytes.Buffer
	if err := sqlTemplate.Execute(&body, struct{ Slug string }{s}); err != nil {
		return "", fmt.Errorf("render migration: %w", err)
	}
	// O_EXCL refuses to clobber a file another create raced us to.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(body.Bytes()); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

// slug lowercases name and collapses every run of other characters to one
// underscore.
func slug(name string) string {
	s := slugUnsafeRe.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}

func nextVersion(dir string, at time.Time) (time.Time, error) {
	at = at.Truncate(time.Second)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s: %w", dir, err)
	}
	var newest int64
	for _, e := range entries {
		if m := sqlFileRe.FindStringSubmatch(e.Name()); m != nil {
			if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				newest = max(newest, v)
			}
		}
	}
	if newest == 0 {
		return at, nil
	}
	latest, err := time.Parse(versionLayout, strconv.FormatInt(newest, 10))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse migration version %d: %w", newest, err)
	}
	if at.After(latest) {
		return at, nil
	}
	return latest.Add(time.Second), nil
}
