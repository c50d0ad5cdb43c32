package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
)

var fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

// Validate checks that every .sql file in migrations has a unique timestamp
// version and carries both goose Up and Down sections.
func Validate(migrations fs.FS) error {
	files, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	versions := make(map[string]string, len(files))
	var problems []string
	for _, file := range files {
		match := fileNameRe.FindStringSubmatch(path.Base(file))
		if match == nil {
			problems = append(problems, fmt.Sprintf("%s: name must be YYYYMMDDHHMMSS_snake_case.sql", file))
			continue
		}
		if other, dup := versions[match[1]]; dup {
			problems = append(problems, fmt.Sprintf("%s: version %s already used by %s", file, match[1], other))
		}
		versions[match[1]] = file

		body, err := fs.ReadFile(migrations, file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				problems = append(problems, fmt.Sprintf("%s: missing %q", file, marker))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid migrations:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
