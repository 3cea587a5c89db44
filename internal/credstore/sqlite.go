package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ReadItem returns the value stored under key in the ItemTable of the
// VS Code style state database at dbPath. The database is opened read-only
// and closed before returning.
func ReadItem(ctx context.Context, dbPath, key string) (string, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return "", fmt.Errorf("%w: state DB %s: %v", ErrNotFound, dbPath, err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return "", fmt.Errorf("opening state DB: %w", err)
	}
	defer db.Close()

	var value sql.NullString
	err = db.QueryRowContext(ctx, `SELECT value FROM ItemTable WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: key %q", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: querying %q: %v", ErrNotFound, key, err)
	}

	v := strings.TrimSpace(value.String)
	if !value.Valid || v == "" {
		return "", fmt.Errorf("%w: key %q is empty", ErrNotFound, key)
	}
	return v, nil
}
