// Package metasys is a typed client for the Metasys REST API (v2).
package metasys

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Getter performs authenticated GET requests.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client reads listings and detail payloads from the Metasys API.
type Client struct {
	baseURL string
	getter  Getter
}

// NewClient creates a client for baseURL, e.g. https://host/api/v2.
func NewClient(baseURL string, getter Getter) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), getter: getter}
}

// ListObjects fetches one page of objects of the given type, sorted by name.
func (c *Client) ListObjects(ctx context.Context, page, objectType, pageSize int) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("type", strconv.Itoa(objectType))
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("sort", "name")

	var p Page
	if err := c.getJSON(ctx, "/objects?"+q.Encode(), &p); err != nil {
		return nil, fmt.Errorf("failed to list objects of type %d (page %d): %w", objectType, page, err)
	}
	return &p, nil
}

// ListNetworkDevices fetches one page of network devices, sorted by name.
func (c *Client) ListNetworkDevices(ctx context.Context, page, pageSize int) (*Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("sort", "name")

	var p Page
	if err := c.getJSON(ctx, "/networkDevices?"+q.Encode(), &p); err != nil {
		return nil, fmt.Errorf("failed to list network devices (page %d): %w", page, err)
	}
	return &p, nil
}

// GetObject returns the raw detail payload for id. Network devices share the
// objects detail endpoint.
func (c *Client) GetObject(ctx context.Context, id string) ([]byte, error) {
	body, err := c.getter.Get(ctx, c.baseURL+"/objects/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", id, err)
	}
	return body, nil
}

// ListEnumSetMembers fetches one page of members of an enumeration set.
func (c *Client) ListEnumSetMembers(ctx context.Context, enumSetID int64, page, pageSize int) (*EnumPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var p EnumPage
	path := "/enumSets/" + strconv.FormatInt(enumSetID, 10) + "/members?" + q.Encode()
	if err := c.getJSON(ctx, path, &p); err != nil {
		return nil, fmt.Errorf("failed to list members of enumset %d (page %d): %w", enumSetID, page, err)
	}
	return &p, nil
}

// CountObjects returns how many objects of the given type the server reports.
func (c *Client) CountObjects(ctx context.Context, objectType int) (int, error) {
	p, err := c.ListObjects(ctx, 1, objectType, 1)
	if err != nil {
		return 0, err
	}
	return p.Total, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.getter.Get(ctx, c.baseURL+path)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
