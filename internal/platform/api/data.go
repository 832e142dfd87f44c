package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"icabatch/internal/apperrors"
	"icabatch/internal/platform"
)

// ListData lists project data entries whose name matches pattern.
// An empty pattern lists everything.
func (c *Client) ListData(ctx context.Context, pattern string) ([]platform.DataItem, error) {
	pid, err := c.projectRef(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if pattern != "" {
		query.Set("filename", pattern)
	}
	var out struct {
		Items []struct {
			ID      string    `json:"id"`
			Name    string    `json:"name"`
			Type    string    `json:"dataType"`
			Size    string    `json:"size"`
			Created time.Time `json:"timeCreated"`
		} `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%s/data", pid), query, nil, &out); err != nil {
		return nil, err
	}

	items := make([]platform.DataItem, 0, len(out.Items))
	for _, it := range out.Items {
		items = append(items, platform.DataItem{
			ID:      it.ID,
			Name:    it.Name,
			Type:    it.Type,
			Size:    it.Size,
			Created: it.Created,
		})
	}
	return items, nil
}

// DeleteData removes one data entry by name.
func (c *Client) DeleteData(ctx context.Context, name string) error {
	items, err := c.ListData(ctx, name)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.Name != name {
			continue
		}
		pid, err := c.projectRef(ctx)
		if err != nil {
			return err
		}
		path := fmt.Sprintf("/api/projects/%s/data/%s", pid, url.PathEscape(it.ID))
		return c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil)
	}
	return apperrors.NotFound("data", name)
}

// Storage returns the project's storage consumption.
func (c *Client) Storage(ctx context.Context) (platform.StorageUsage, error) {
	pid, err := c.projectRef(ctx)
	if err != nil {
		return platform.StorageUsage{}, err
	}

	var out struct {
		UsedGB  float64 `json:"usedGb"`
		TotalGB float64 `json:"totalGb"`
	}
	path := fmt.Sprintf("/api/projects/%s/storageUsage", pid)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return platform.StorageUsage{}, err
	}
	return platform.StorageUsage{UsedGB: out.UsedGB, TotalGB: out.TotalGB}, nil
}

// Costs returns the project's accumulated cost.
func (c *Client) Costs(ctx context.Context) (platform.CostReport, error) {
	pid, err := c.projectRef(ctx)
	if err != nil {
		return platform.CostReport{}, err
	}

	var out struct {
		TotalCost float64 `json:"totalCost"`
		Currency  string  `json:"currency"`
	}
	path := fmt.Sprintf("/api/projects/%s/costs", pid)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return platform.CostReport{}, err
	}
	return platform.CostReport{TotalCost: out.TotalCost, Currency: out.Currency}, nil
}
