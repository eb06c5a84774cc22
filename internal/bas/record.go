// Package bas sends enriched records to the EntraOS BAS metadata API.
package bas

import (
	"encoding/base64"
	"time"
)

// Record is the body of POST /metadata/bas/realestate/{realEstate}.
type Record struct {
	ID            string  `json:"id"`
	RealEstate    string  `json:"realEstate"`
	ParentID      *string `json:"parentId"`
	Type          string  `json:"type"`
	Discovered    *string `json:"discovered"`
	LastCrawl     *string `json:"lastCrawl"`
	LastError     *string `json:"lastError"`
	Successes     int     `json:"successes"`
	Errors        int     `json:"errors"`
	Response      string  `json:"response"`
	Name          string  `json:"name"`
	ItemReference string  `json:"itemReference"`
	TFM           string  `json:"tfm"`
	Description   string  `json:"description"`
}

// Timestamp formats t as RFC 3339 in UTC. A nil or zero time encodes as JSON null.
func Timestamp(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// EncodeResponse base64-encodes the raw payload text.
func EncodeResponse(payload string) string {
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// DecodeResponse reverses EncodeResponse.
func DecodeResponse(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
