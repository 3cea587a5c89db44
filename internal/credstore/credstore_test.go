package credstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReadJSON_MissingFile(t *testing.T) {
	var v map[string]any
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &v)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadJSON() error = %v, want ErrNotFound", err)
	}
}

func TestReadJSON_Unparseable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	var v map[string]any
	if err := ReadJSON(path, &v); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadJSON() error = %v, want ErrNotFound", err)
	}
}

func TestDocument_WithPreservesUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	content := `{"token":"old","mcpOAuth":{"server":"x"},"extra":[1,2,3]}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument() error: %v", err)
	}

	updated, err := doc.With("token", "new")
	if err != nil {
		t.Fatalf("With() error: %v", err)
	}

	var orig string
	if err := doc.Decode("token", &orig); err != nil || orig != "old" {
		t.Fatalf("original document mutated: token = %q, err = %v", orig, err)
	}

	if err := WriteJSONAtomic(path, updated, "  "); err != nil {
		t.Fatalf("WriteJSONAtomic() error: %v", err)
	}

	reloaded, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	var token string
	if err := reloaded.Decode("token", &token); err != nil || token != "new" {
		t.Fatalf("token = %q, err = %v, want new", token, err)
	}
	if !reloaded.Has("mcpOAuth") || !reloaded.Has("extra") {
		t.Fatalf("unknown fields dropped: %v", reloaded)
	}
}

func TestWriteJSONAtomic_KeepsModeAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o640); err != nil {
		t.Fatal(err)
	}

	if err := WriteJSONAtomic(path, map[string]int{"a": 1}, "    "); err != nil {
		t.Fatalf("WriteJSONAtomic() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Errorf("mode = %v, want 0640", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the credentials file, found %d entries", len(entries))
	}

	data, _ := os.ReadFile(path)
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil || got["a"] != 1 {
		t.Errorf("written content = %s, err = %v", data, err)
	}
}

func createStateDB(t *testing.T, items map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.vscdb")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for k, v := range items {
		if _, err := db.Exec(`INSERT INTO ItemTable (key, value) VALUES (?, ?)`, k, v); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return path
}

func TestReadItem(t *testing.T) {
	path := createStateDB(t, map[string]string{
		"cursorAuth/accessToken": "tok-123",
		"cursorAuth/cachedEmail": "",
	})
	ctx := context.Background()

	got, err := ReadItem(ctx, path, "cursorAuth/accessToken")
	if err != nil {
		t.Fatalf("ReadItem() error: %v", err)
	}
	if got != "tok-123" {
		t.Errorf("ReadItem() = %q, want tok-123", got)
	}

	if _, err := ReadItem(ctx, path, "cursorAuth/cachedEmail"); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty value error = %v, want ErrNotFound", err)
	}
	if _, err := ReadItem(ctx, path, "cursorAuth/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key error = %v, want ErrNotFound", err)
	}
}

func TestReadItem_ExactKeyMatch(t *testing.T) {
	path := createStateDB(t, map[string]string{"cursorAuth/accessTokenX": "wrong"})
	if _, err := ReadItem(context.Background(), path, "cursorAuth/accessToken"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadItem() error = %v, want ErrNotFound", err)
	}
}

func TestReadItem_MissingDB(t *testing.T) {
	_, err := ReadItem(context.Background(), filepath.Join(t.TempDir(), "none.vscdb"), "k")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadItem() error = %v, want ErrNotFound", err)
	}
}

type fakeRunner struct {
	out []byte
	err error
}

func (f fakeRunner) Output(context.Context, string, ...string) ([]byte, error) {
	return f.out, f.err
}

func TestRunHelper(t *testing.T) {
	tests := []struct {
		name    string
		runner  fakeRunner
		want    string
		wantErr bool
	}{
		{name: "token", runner: fakeRunner{out: []byte("gho_abc\n")}, want: "gho_abc"},
		{name: "non-zero exit", runner: fakeRunner{err: errors.New("exit status 1")}, wantErr: true},
		{name: "empty output", runner: fakeRunner{out: []byte("  \n")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RunHelper(context.Background(), tt.runner, "gh", "auth", "token")
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("RunHelper() error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RunHelper() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RunHelper() = %q, want %q", got, tt.want)
			}
		})
	}
}
