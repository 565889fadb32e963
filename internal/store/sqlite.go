package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var ErrNotFound = errors.New("not found")

const commandTimeout = 8 * time.Second

// Store persists plans, metric feeds and feed snapshots through the sqlite3
// command line tool.
type Store struct {
	dbPath string
}

func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			location TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_metrics (
			location TEXT NOT NULL,
			business_date TEXT NOT NULL,
			revenue REAL NOT NULL DEFAULT 0,
			delivery_net REAL NOT NULL DEFAULT 0,
			labor_cost REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (location, business_date)
		);`,
		`CREATE TABLE IF NOT EXISTS hourly_metrics (
			location TEXT NOT NULL,
			month TEXT NOT NULL,
			hour INTEGER NOT NULL,
			avg_revenue REAL NOT NULL DEFAULT 0,
			avg_delivery_net REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (location, month, hour)
		);`,
		`CREATE TABLE IF NOT EXISTS feed_cache (
			cache_key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);`,
	}
	for _, statement := range statements {
		if err := withSQLiteRetry(func() error {
			_, err := s.exec(ctx, statement, nil)
			return err
		}); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

func (s *Store) exec(ctx context.Context, statement string, params map[string]string) (string, error) {
	return s.run(ctx, statement, params, false)
}

func (s *Store) query(ctx context.Context, statement string, params map[string]string) ([]map[string]any, error) {
	out, err := s.run(ctx, statement, params, true)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return []map[string]any{}, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, errors.Wrap(err, "decode sqlite3 output")
	}
	return rows, nil
}

// run feeds the script through stdin so large statements are not limited
// by argument length.
func (s *Store) run(ctx context.Context, statement string, params map[string]string, jsonMode bool) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var script strings.Builder
	script.WriteString(".timeout 5000\n")
	if jsonMode {
		script.WriteString(".mode json\n")
	}
	script.WriteString("PRAGMA foreign_keys = ON;\n")
	script.WriteString(bindSQLParams(statement, params))
	script.WriteString("\n")

	cmd := exec.CommandContext(runCtx, "sqlite3", s.dbPath)
	cmd.Stdin = strings.NewReader(script.String())
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("sqlite3 command failed: %w (%s)", err, strings.TrimSpace(string(output)))
	}
	if text := strings.TrimSpace(string(output)); strings.HasPrefix(text, "Parse error") || strings.HasPrefix(text, "Runtime error") {
		return "", fmt.Errorf("sqlite3 command failed: %s", text)
	}
	return string(output), nil
}

var sqlParam = regexp.MustCompile(`@[A-Za-z_][A-Za-z0-9_]*`)

// bindSQLParams substitutes @name tokens in one pass, so bound values are
// never rescanned for further tokens.
func bindSQLParams(statement string, params map[string]string) string {
	if len(params) == 0 {
		return statement
	}
	return sqlParam.ReplaceAllStringFunc(statement, func(token string) string {
		value, ok := params[token[1:]]
		if !ok {
			return token
		}
		return sqliteStringLiteral(value)
	})
}

func sqliteStringLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func withSQLiteRetry(fn func() error) error {
	const maxAttempts = 3
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		lower := strings.ToLower(err.Error())
		if !strings.Contains(lower, "database is locked") && !strings.Contains(lower, "database is busy") {
			return err
		}
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt) * 125 * time.Millisecond)
		}
	}
	return err
}

func valueAsString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unexpected type for string: %T", value)
	}
}

func valueAsInt64(value any) (int64, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type for int64: %T", value)
	}
}

func valueAsFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type for float64: %T", value)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
