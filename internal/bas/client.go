package bas

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Poster performs authenticated JSON POSTs.
type Poster interface {
	PostJSON(ctx context.Context, url string, body any) ([]byte, error)
}

// Client posts records to the sink, one per request.
type Client struct {
	baseURL string
	poster  Poster
}

// NewClient creates a sink client for baseURL.
func NewClient(baseURL string, poster Poster) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), poster: poster}
}

// Send posts rec to the endpoint of realEstate.
func (c *Client) Send(ctx context.Context, realEstate string, rec *Record) error {
	endpoint := c.baseURL + "/metadata/bas/realestate/" + url.PathEscape(realEstate)
	if _, err := c.poster.PostJSON(ctx, endpoint, rec); err != nil {
		return fmt.Errorf("failed to send record %s to %s: %w", rec.ID, realEstate, err)
	}
	return nil
}
