package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"icabatch/internal/apperrors"
)

// outputItem is one entry in an analysis output listing.
type outputItem struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// Download fetches every output file of an analysis into dest, preserving
// the output folder structure.
func (c *Client) Download(ctx context.Context, analysisID, dest string) error {
	pid, err := c.projectRef(ctx)
	if err != nil {
		return err
	}

	var out struct {
		Items []outputItem `json:"items"`
	}
	path := fmt.Sprintf("/api/projects/%s/analyses/%s/outputs", pid, url.PathEscape(analysisID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return err
	}
	if len(out.Items) == 0 {
		return apperrors.Resource("api.download", fmt.Sprintf("analysis %s has no outputs", analysisID))
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return apperrors.IO("download.mkdir", err)
	}
	for _, item := range out.Items {
		if item.Type != "FILE" {
			continue
		}
		if err := c.downloadFile(ctx, pid, item, dest); err != nil {
			return err
		}
	}
	c.logger.Info("Results downloaded", "analysis", analysisID, "dest", dest)
	return nil
}

// downloadFile streams one output file from its presigned URL to disk.
func (c *Client) downloadFile(ctx context.Context, pid string, item outputItem, dest string) error {
	var download struct {
		URL string `json:"url"`
	}
	err := c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/api/projects/%s/data/%s:createDownloadUrl", pid, url.PathEscape(item.ID)),
		nil, nil, &download)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, download.URL, nil)
	if err != nil {
		return apperrors.Network("download.get", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Network("download.get", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.statusError("download.get", resp)
	}

	target := filepath.Join(dest, filepath.FromSlash(item.Path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return apperrors.IO("download.mkdir", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return apperrors.IO("download.create", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return apperrors.IO("download.write", err)
	}
	return nil
}
