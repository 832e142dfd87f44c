package api

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"icabatch/internal/apperrors"
)

// dataEnvelope is the creation response for project data entries.
type dataEnvelope struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Upload creates a project folder named name and uploads every regular file
// under folder into it. It returns the folder's data reference.
func (c *Client) Upload(ctx context.Context, folder, name string) (string, error) {
	pid, err := c.projectRef(ctx)
	if err != nil {
		return "", err
	}

	var created dataEnvelope
	err = c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/projects/%s/data", pid), nil, map[string]any{
		"name":     name,
		"dataType": "FOLDER",
	}, &created)
	if err != nil {
		return "", err
	}
	folderID := created.Data.ID

	err = filepath.WalkDir(folder, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return apperrors.IO("upload.walk", walkErr)
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(folder, path)
		if relErr != nil {
			return apperrors.IO("upload.walk", relErr)
		}
		return c.uploadFile(ctx, pid, folderID, path, filepath.ToSlash(rel))
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("Folder uploaded", "folder", folder, "dataRef", folderID)
	return folderID, nil
}

// uploadFile registers one file in the project and streams its content to
// the presigned upload URL.
func (c *Client) uploadFile(ctx context.Context, pid, folderID, path, name string) error {
	var created dataEnvelope
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/projects/%s/data", pid), nil, map[string]any{
		"name":     name,
		"dataType": "FILE",
		"folderId": folderID,
	}, &created)
	if err != nil {
		return err
	}

	var upload struct {
		URL string `json:"url"`
	}
	err = c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/api/projects/%s/data/%s:createUploadUrl", pid, url.PathEscape(created.Data.ID)),
		nil, nil, &upload)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return apperrors.IO("upload.open", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return apperrors.IO("upload.stat", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, upload.URL, f)
	if err != nil {
		return apperrors.Network("upload.put", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Network("upload.put", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return c.statusError("upload.put", resp)
	}
	return nil
}
