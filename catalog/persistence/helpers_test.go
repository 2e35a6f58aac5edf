package persistence

import (
	"bytes"
	"database/sql"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/dfryer1193/catalog/shared/db/sqlite"
	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory SQLite database holding the product table
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)

	for _, stmt := range sqlite.Schema() {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}

	return conn
}

// newFileHeader builds the *multipart.FileHeader a server would see for an upload.
func newFileHeader(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, "/upload", &body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("failed to parse multipart form: %v", err)
	}

	files := req.MultipartForm.File[field]
	if len(files) != 1 {
		t.Fatalf("expected one file under %q, got %d", field, len(files))
	}
	return files[0]
}
