// Package load moves the files of a resolved scan into local hands: as a
// DuckDB view selecting straight from the presigned URLs, or as plain
// parquet downloads on disk.
package load

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/lakeshare/lakeshare"
	"github.com/lakeshare/lakeshare/sharing"
)

// urlSource answers presigned-URL lookups for the files of one scan. Both
// scan kinds satisfy it.
type urlSource interface {
	URL(ctx context.Context, fileID string) (sharing.SignedURL, error)
}

// Loader reads the files of one resolved scan.
type Loader struct {
	files  []sharing.FileReference
	source urlSource
	client *http.Client
	logger *slog.Logger
}

// NewLoader builds a Loader over a snapshot scan. The scan must stay open
// for as long as the loader is used.
func NewLoader(scan *lakeshare.Scan, logger *slog.Logger) *Loader {
	return newLoader(scan.Files, scan, logger)
}

// NewChangeLoader builds a Loader over a change-data-feed scan. The derived
// change-feed columns ride along as per-file constants.
func NewChangeLoader(scan *lakeshare.ChangeScan, logger *slog.Logger) *Loader {
	return newLoader(scan.Files(), scan, logger)
}

func newLoader(files []sharing.FileReference, source urlSource, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		files:  files,
		source: source,
		client: http.DefaultClient,
		logger: logger,
	}
}

// IntoDuckDB exposes the scan as a view on db. Every file's presigned URL is
// resolved up front; partition values and change-feed columns that live
// outside the parquet data are added as constant columns per file.
//
// Reading remote URLs needs the httpfs extension loaded on the handle; call
// InstallExtensions first.
func (l *Loader) IntoDuckDB(ctx context.Context, db *sql.DB, viewName string) error {
	if len(l.files) == 0 {
		return sharing.ErrValidation("scan has no files to expose as view %q", viewName)
	}
	sources := make([]fileSource, 0, len(l.files))
	for _, ref := range l.files {
		signed, err := l.source.URL(ctx, ref.FileID)
		if err != nil {
			return fmt.Errorf("resolve URL for file %s: %w", ref.FileID, err)
		}
		sources = append(sources, fileSource{URL: signed.URL, Ref: ref})
	}

	stmt, err := createViewStatement(viewName, sources)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create view %q: %w", viewName, err)
	}
	l.logger.Debug("created view over scan", "view", viewName, "files", len(sources))
	return nil
}

// Download fetches every file of the scan into dir, one parquet file per
// file ID, and returns the written paths in scan order. The directory is
// created if missing. A failed file aborts the whole download.
func (l *Loader) Download(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	paths := make([]string, 0, len(l.files))
	for _, ref := range l.files {
		path, err := l.downloadOne(ctx, dir, ref)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (l *Loader) downloadOne(ctx context.Context, dir string, ref sharing.FileReference) (string, error) {
	signed, err := l.source.URL(ctx, ref.FileID)
	if err != nil {
		return "", fmt.Errorf("resolve URL for file %s: %w", ref.FileID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for file %s: %w", ref.FileID, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch file %s: %w", ref.FileID, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch file %s: storage returned %s", ref.FileID, resp.Status)
	}

	// File IDs are URL-safe in practice; escaping keeps a hostile one from
	// writing outside dir.
	path := filepath.Join(dir, url.PathEscape(ref.FileID)+".parquet")
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path) //nolint:errcheck
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	l.logger.Debug("downloaded file", "file_id", ref.FileID, "path", path, "bytes", n)
	return path, nil
}
