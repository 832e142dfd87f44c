package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"icabatch/internal/apperrors"
	"icabatch/internal/platform"
)

// analysisDoc is the platform's analysis representation.
type analysisDoc struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// Launch starts a pipeline analysis over the uploaded folder.
func (c *Client) Launch(ctx context.Context, spec platform.LaunchSpec) (string, error) {
	pid, err := c.projectRef(ctx)
	if err != nil {
		return "", err
	}

	var out analysisDoc
	err = c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/projects/%s/analyses", pid), nil, map[string]any{
		"pipeline":      spec.Pipeline,
		"userReference": spec.UserReference,
		"inputFolderId": spec.DataRef,
		"parameters":    spec.Params,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apperrors.Resource("api.launch", "platform returned no analysis id")
	}
	c.logger.Info("Analysis created", "analysis", out.ID, "userReference", spec.UserReference)
	return out.ID, nil
}

// Poll returns the current status of an analysis.
func (c *Client) Poll(ctx context.Context, analysisID string) (platform.Status, error) {
	pid, err := c.projectRef(ctx)
	if err != nil {
		return platform.Status{}, err
	}

	var out analysisDoc
	path := fmt.Sprintf("/api/projects/%s/analyses/%s", pid, url.PathEscape(analysisID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return platform.Status{}, err
	}
	return platform.StatusFrom(out.Status, out.Summary), nil
}
