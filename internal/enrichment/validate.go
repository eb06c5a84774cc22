package enrichment

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrErrorMessage is returned for payloads carrying a top-level "message".
	ErrErrorMessage = errors.New("error message found")
	// ErrNoItem is returned for payloads without a top-level "item".
	ErrNoItem = errors.New("no item")
	// ErrMalformedPayload is returned when the payload is not a JSON object.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Validate checks a detail payload before it is stored.
func Validate(payload []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if msg, ok := top["message"]; ok {
		return fmt.Errorf("%w: %s", ErrErrorMessage, msg)
	}
	if item, ok := top["item"]; !ok || string(item) == "null" {
		return ErrNoItem
	}
	return nil
}
