package metasys

import (
	"encoding/json"
	"strings"
)

// ListItem is one entry of an /objects or /networkDevices listing.
type ListItem struct {
	ID            string `json:"id"`
	ParentURL     string `json:"parentUrl"`
	ItemReference string `json:"itemReference"`
	Name          string `json:"name"`
}

// ParentID is the trailing path segment of ParentURL, or nil when the item has no parent.
func (i ListItem) ParentID() *string {
	u := strings.TrimRight(i.ParentURL, "/")
	if u == "" {
		return nil
	}
	id := u[strings.LastIndex(u, "/")+1:]
	if id == "" {
		return nil
	}
	return &id
}

// Page is a listing page. Next is nil on the last page.
type Page struct {
	Items []ListItem `json:"items"`
	Next  *string    `json:"next"`
	Total int        `json:"total"`
}

// HasNext reports whether another page follows.
func (p *Page) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// EnumMember is one entry of an enumeration set.
type EnumMember struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
}

// EnumPage is a page of enumeration members.
type EnumPage struct {
	Items []EnumMember `json:"items"`
	Next  *string      `json:"next"`
	Total int          `json:"total"`
}

// HasNext reports whether another page follows.
func (p *EnumPage) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// ObjectDetail is the part of a deep fetch payload the crawler reads. The full
// payload is kept verbatim.
type ObjectDetail struct {
	Message *string        `json:"message"`
	Item    json.RawMessage `json:"item"`
}

// ItemSummary holds the fields read from the "item" member of a detail payload.
type ItemSummary struct {
	ID            string `json:"id"`
	Description   string `json:"description"`
	Units         string `json:"units"`
	ItemReference string `json:"itemReference"`
	Name          string `json:"name"`
}
