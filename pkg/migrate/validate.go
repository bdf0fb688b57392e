package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

	// Postgres-only constructs that break the sqlite dev/test dialect.
	nonPortableRes = map[string]*regexp.Regexp{
		"now()":                regexp.MustCompile(`(?i)\bnow\s*\(\s*\)`),
		"gen_random_uuid()":    regexp.MustCompile(`(?i)\bgen_random_uuid\s*\(`),
		"::type casts":         regexp.MustCompile(`::\s*[a-z]`),
		"SERIAL columns":       regexp.MustCompile(`(?i)\b(big)?serial\b`),
		"ILIKE":                regexp.MustCompile(`(?i)\bilike\b`),
		"CREATE EXTENSION":     regexp.MustCompile(`(?i)\bcreate\s+extension\b`),
		"CREATE TYPE ... ENUM": regexp.MustCompile(`(?i)\bcreate\s+type\b`),
	}
)

// ValidateDir checks migration filenames and goose sections, and rejects
// SQL that only postgres understands. Every problem found is reported.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{} // version -> filename
	var errs error

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}

		version := m[1]
		if prev, ok := seen[version]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name))
			continue
		}
		seen[version] = name

		full := filepath.Join(dir, name)
		b, err := os.ReadFile(full)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("read file %q: %w", full, err))
			continue
		}
		errs = multierr.Append(errs, validateSQL(name, string(b)))
	}

	return errs
}

func validateSQL(name, txt string) error {
	up := strings.Index(txt, "-- +goose Up")
	down := strings.Index(txt, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	case down < 0:
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	case down < up:
		return fmt.Errorf("migration %q has Down before Up", name)
	}

	var errs error
	body := stripSQLComments(txt)
	for label, re := range nonPortableRes {
		if re.MatchString(body) {
			errs = multierr.Append(errs, fmt.Errorf("migration %q uses %s, which sqlite cannot run", name, label))
		}
	}
	return errs
}

func stripSQLComments(txt string) string {
	lines := strings.Split(txt, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}
