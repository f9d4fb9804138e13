package gateway

import (
	"bytes"
	"context"
	"net/http"
)

// Upload stores an object in the given bucket at path.
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url := c.baseURL + "/storage/v1/object/" + bucket + "/" + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.do(httpReq, "upload "+bucket, http.StatusOK, http.StatusCreated)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}

// PublicURL returns the public download URL for an object. No network call
// is made; the URL shape is fixed by the backend.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + bucket + "/" + path
}

// Remove deletes objects from a bucket. Missing paths are not an error.
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}
	body, err := jsonBody(map[string][]string{"prefixes": paths})
	if err != nil {
		return err
	}
	url := c.baseURL + "/storage/v1/object/" + bucket
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq, "remove "+bucket, http.StatusOK, http.StatusNoContent)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}
