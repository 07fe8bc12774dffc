package transport

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/rexlunae/agentgw/internal/media"
)

// maxMediaBytes caps how large a remote attachment MediaIndex will fetch.
const maxMediaBytes = 10 * 1024 * 1024

// allowedMediaMIME is the set of content types MediaIndex will cache.
// Anything outside this allowlist is rejected rather than fetched.
var allowedMediaMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,

	"audio/mpeg": true,
	"audio/ogg":  true,
	"audio/wav":  true,

	"video/mp4":  true,
	"video/webm": true,

	"application/pdf": true,
	"text/plain":      true,
}

const mediaIndexSchema = `
CREATE TABLE IF NOT EXISTS media_assets (
	hash TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	local_path TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	fetched_at DATETIME NOT NULL
)
`

// MediaIndex downloads, size- and MIME-gates, and caches remote
// attachments, recording each one in a SQLite index keyed by URL hash so
// repeat references reuse the cached copy instead of refetching.
type MediaIndex struct {
	db         *sql.DB
	cacheDir   string
	httpClient *http.Client
}

// OpenMediaIndex opens (creating if needed) the SQLite index at dbPath and
// ensures cacheDir exists for downloaded files.
func OpenMediaIndex(dbPath, cacheDir string) (*MediaIndex, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("transport: open media index: %w", err)
	}
	if _, err := db.Exec(mediaIndexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("transport: create media index schema: %w", err)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		db.Close()
		return nil, fmt.Errorf("transport: create media cache dir: %w", err)
	}

	return &MediaIndex{
		db:         db,
		cacheDir:   cacheDir,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Close releases the underlying database handle.
func (idx *MediaIndex) Close() error {
	return idx.db.Close()
}

// Fetch returns the cached copy of att if the index already has it, or
// downloads, validates, caches, and indexes it otherwise.
func (idx *MediaIndex) Fetch(ctx context.Context, att Attachment) (*media.Attachment, error) {
	key := mediaKey(att.URL)

	cached, ok, err := idx.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build media request: %w", err)
	}
	resp, err := idx.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: fetch media: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("transport: read media body: %w", err)
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("transport: media exceeds %d byte limit", maxMediaBytes)
	}

	mimeType := media.DetectMIME(data, att.Filename, resp.Header.Get("Content-Type"))
	if mimeType == "" {
		mimeType = att.MimeType
	}
	if !allowedMediaMIME[mimeType] {
		return nil, fmt.Errorf("transport: media type %q not allowed", mimeType)
	}

	localPath := filepath.Join(idx.cacheDir, key+media.ExtensionFromMIME(mimeType))
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("transport: write media cache: %w", err)
	}

	if _, err := idx.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO media_assets (hash, url, mime_type, local_path, size_bytes, fetched_at) VALUES (?, ?, ?, ?, ?, ?)`,
		key, att.URL, mimeType, localPath, len(data), time.Now(),
	); err != nil {
		return nil, fmt.Errorf("transport: index media: %w", err)
	}

	return &media.Attachment{
		ID:        key,
		Type:      media.MediaType(media.KindFromMIME(mimeType)),
		MimeType:  mimeType,
		Filename:  att.Filename,
		Size:      int64(len(data)),
		URL:       att.URL,
		LocalPath: localPath,
	}, nil
}

// Get returns the media reference indexed under id, for looking up
// attachments other components produced by hash (e.g. an inbound
// attachment a tool wants to read bytes for).
func (idx *MediaIndex) Get(ctx context.Context, id string) (*media.Attachment, error) {
	att, ok, err := idx.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("transport: media %q not found in index", id)
	}
	return att, nil
}

// Store caches locally-produced bytes (e.g. a TTS render or a vision
// caption) under a content-addressed id and records them in the index,
// the same way Fetch does for remote attachments. mimeType must be on
// the cache allowlist.
func (idx *MediaIndex) Store(ctx context.Context, data []byte, mimeType string) (*media.Attachment, error) {
	if !allowedMediaMIME[mimeType] {
		return nil, fmt.Errorf("transport: media type %q not allowed", mimeType)
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("transport: media exceeds %d byte limit", maxMediaBytes)
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if cached, ok, err := idx.lookup(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	localPath := filepath.Join(idx.cacheDir, key+media.ExtensionFromMIME(mimeType))
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("transport: write media cache: %w", err)
	}

	if _, err := idx.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO media_assets (hash, url, mime_type, local_path, size_bytes, fetched_at) VALUES (?, ?, ?, ?, ?, ?)`,
		key, "", mimeType, localPath, len(data), time.Now(),
	); err != nil {
		return nil, fmt.Errorf("transport: index media: %w", err)
	}

	return &media.Attachment{
		ID:        key,
		Type:      media.MediaType(media.KindFromMIME(mimeType)),
		MimeType:  mimeType,
		Size:      int64(len(data)),
		LocalPath: localPath,
	}, nil
}

func (idx *MediaIndex) lookup(ctx context.Context, key string) (*media.Attachment, bool, error) {
	row := idx.db.QueryRowContext(ctx,
		`SELECT url, mime_type, local_path, size_bytes FROM media_assets WHERE hash = ?`, key)

	var url, mimeType, localPath string
	var size int64
	if err := row.Scan(&url, &mimeType, &localPath, &size); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("transport: query media index: %w", err)
	}

	return &media.Attachment{
		ID:        key,
		Type:      media.MediaType(media.KindFromMIME(mimeType)),
		MimeType:  mimeType,
		URL:       url,
		LocalPath: localPath,
		Size:      size,
	}, true, nil
}

func mediaKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
