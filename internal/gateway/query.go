package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/wanderapp/wander-go/internal/types"
)

// Select fetches rows from table with the given filters. Rows are returned
// raw so callers can decode them individually and skip malformed records
// without losing the rest of the batch.
func (c *Client) Select(ctx context.Context, table string, opts ...QueryOption) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(table, opts), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(httpReq, "select "+table, http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert writes one row into table.
func (c *Client) Insert(ctx context.Context, table string, row any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := jsonBody(row)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(table, nil), body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Prefer", "return=minimal")

	resp, err := c.do(httpReq, "insert "+table, http.StatusCreated, http.StatusOK)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}

// Update patches the rows matched by opts. The patch is applied as a single
// combined write, not per-field round trips.
func (c *Client) Update(ctx context.Context, table string, patch any, opts ...QueryOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := jsonBody(patch)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.tableURL(table, opts), body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Prefer", "return=minimal")

	resp, err := c.do(httpReq, "update "+table, http.StatusNoContent, http.StatusOK)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}

// Delete removes the rows matched by opts. Deleting zero rows is not an
// error; the backend reports success either way.
func (c *Client) Delete(ctx context.Context, table string, opts ...QueryOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.tableURL(table, opts), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(httpReq, "delete "+table, http.StatusNoContent, http.StatusOK)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}

// SelectFavorites fetches the favorite edges for one user.
func (c *Client) SelectFavorites(ctx context.Context, userID string) ([]types.FavoriteEdge, error) {
	rows, err := c.Select(ctx, "favorites", Eq("user_id", userID))
	if err != nil {
		return nil, err
	}
	edges := make([]types.FavoriteEdge, 0, len(rows))
	for _, raw := range rows {
		var e types.FavoriteEdge
		if err := json.Unmarshal(raw, &e); err != nil || e.AttractionID == "" {
			c.log.Warn().Err(err).Msg("skipping malformed favorite row")
			continue
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func (c *Client) tableURL(table string, opts []QueryOption) string {
	v := url.Values{}
	for _, opt := range opts {
		opt(v)
	}
	u := c.baseURL + "/rest/v1/" + table
	if len(v) > 0 {
		u += "?" + v.Encode()
	}
	return u
}
