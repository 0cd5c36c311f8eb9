package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/pouchlab-backend/pkg/enums"
)

// PriceWarning captures a non-fatal condition raised while pricing.
type PriceWarning struct {
	Type    enums.PriceWarningType `json:"type"`
	Message string                 `json:"message"`
}

// PriceWarnings is a slice marshaled as JSONB.
type PriceWarnings []PriceWarning

// Has reports whether a warning of the given type is present.
func (p PriceWarnings) Has(warningType enums.PriceWarningType) bool {
	for _, w := range p {
		if w.Type == warningType {
			return true
		}
	}
	return false
}

// Value serializes the warnings to JSON.
func (p PriceWarnings) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan decodes JSONB into the warning slice.
func (p *PriceWarnings) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded PriceWarnings
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*p = decoded
	return nil
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
