package connect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"chart-extension/internal/models"
)

// GetInstallation fetches the installation record, settings included.
func (c *Client) GetInstallation(ctx context.Context, id string) (models.Installation, error) {
	var inst models.Installation
	if _, err := c.do(ctx, http.MethodGet, CollectionInstallations+"/"+url.PathEscape(id), "", nil, &inst); err != nil {
		return models.Installation{}, err
	}
	return inst, nil
}

// UpdateInstallation sends payload as the new state of the installation's
// top-level fields. Fields present in payload replace the stored value.
func (c *Client) UpdateInstallation(ctx context.Context, id string, payload interface{}) (models.Installation, error) {
	var inst models.Installation
	if _, err := c.do(ctx, http.MethodPut, CollectionInstallations+"/"+url.PathEscape(id), "", payload, &inst); err != nil {
		return models.Installation{}, err
	}
	return inst, nil
}

// EachMarketplace streams the marketplace catalog page by page, projected on
// fields, and calls fn for every item in the order the API returns them.
// Iteration stops at the first error returned by fn.
func (c *Client) EachMarketplace(ctx context.Context, fields []string, fn func(models.Marketplace) error) error {
	offset := 0
	for {
		var page []models.Marketplace
		query := joinQuery(selectFields(fields), pageQuery(c.pageSize, offset))
		resp, err := c.do(ctx, http.MethodGet, CollectionMarketplaces, query, nil, &page)
		if err != nil {
			return err
		}
		for _, mp := range page {
			if err := fn(mp); err != nil {
				return err
			}
		}
		offset += len(page)
		if len(page) == 0 {
			return nil
		}
		if header := resp.Header.Get("Content-Range"); header != "" {
			cr, err := parseContentRange(header)
			if err != nil {
				return fmt.Errorf("list marketplaces: %w", err)
			}
			if offset >= cr.Total {
				return nil
			}
			continue
		}
		if len(page) < c.pageSize {
			return nil
		}
	}
}

// Count returns how many items of collection match filter, without fetching them.
func (c *Client) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	query := joinQuery(filter.String(), "limit=0")
	resp, err := c.do(ctx, http.MethodGet, collection, query, nil, nil)
	if err != nil {
		return 0, err
	}
	cr, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return cr.Total, nil
}

// Ping checks the API is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, CollectionMarketplaces, "limit=0", nil, nil)
	return err
}
