package cli

import (
	"context"
	"time"

	"icabatch/internal/platform"
)

// ListData lists project data entries whose name matches pattern.
func (c *Client) ListData(ctx context.Context, pattern string) ([]platform.DataItem, error) {
	args := []string{"projectdata", "list"}
	if pattern != "" {
		args = append(args, "--file-name", pattern, "--match-mode", "FUZZY")
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
	if err := c.runJSON(ctx, &out, args...); err != nil {
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
	return c.runJSON(ctx, nil, "projectdata", "delete", name)
}

// Storage returns the project's storage consumption.
func (c *Client) Storage(ctx context.Context) (platform.StorageUsage, error) {
	var out struct {
		UsedGB  float64 `json:"usedGb"`
		TotalGB float64 `json:"totalGb"`
	}
	if err := c.runJSON(ctx, &out, "projects", "storage"); err != nil {
		return platform.StorageUsage{}, err
	}
	return platform.StorageUsage{UsedGB: out.UsedGB, TotalGB: out.TotalGB}, nil
}

// Costs returns the project's accumulated cost.
func (c *Client) Costs(ctx context.Context) (platform.CostReport, error) {
	var out struct {
		TotalCost float64 `json:"totalCost"`
		Currency  string  `json:"currency"`
	}
	if err := c.runJSON(ctx, &out, "projects", "costs"); err != nil {
		return platform.CostReport{}, err
	}
	return platform.CostReport{TotalCost: out.TotalCost, Currency: out.Currency}, nil
}
