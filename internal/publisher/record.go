package publisher

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/bas"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/metasys"
)

var (
	// ErrInvalidRecord is returned when a stored object cannot be turned into a sink record.
	ErrInvalidRecord = errors.New("invalid record")

	errSourceMessage = errors.New("payload carries an error message")
)

// parsePayload decodes the stored payload. It returns errSourceMessage for payloads
// the source answered with an error message.
func parsePayload(raw string) (*metasys.ItemSummary, error) {
	var detail metasys.ObjectDetail
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %w", ErrInvalidRecord, err)
	}
	if detail.Message != nil {
		return nil, fmt.Errorf("%w: %s", errSourceMessage, *detail.Message)
	}
	if len(detail.Item) == 0 {
		return nil, fmt.Errorf("%w: payload has no item", ErrInvalidRecord)
	}

	var item metasys.ItemSummary
	if err := json.Unmarshal(detail.Item, &item); err != nil {
		return nil, fmt.Errorf("%w: decode item: %w", ErrInvalidRecord, err)
	}
	return &item, nil
}

// buildRecord maps a stored object onto the sink shape.
func buildRecord(obj *domain.Object, realEstate, typeDescription string, item *metasys.ItemSummary) (*bas.Record, error) {
	if obj.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if obj.Response == nil {
		return nil, fmt.Errorf("%w: %s has no payload", ErrInvalidRecord, obj.ID)
	}

	discovered := obj.Discovered
	return &bas.Record{
		ID:            obj.ID,
		RealEstate:    realEstate,
		ParentID:      obj.ParentID,
		Type:          typeDescription,
		Discovered:    bas.Timestamp(&discovered),
		LastCrawl:     bas.Timestamp(obj.LastCrawl),
		LastError:     bas.Timestamp(obj.LastError),
		Successes:     obj.Successes,
		Errors:        obj.Errors,
		Response:      bas.EncodeResponse(*obj.Response),
		Name:          obj.Name,
		ItemReference: obj.ItemReference,
		TFM:           obj.Name,
		Description:   item.Description,
	}, nil
}
