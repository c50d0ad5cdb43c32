package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultShippingCountry is applied when the buyer omits a country code.
const DefaultShippingCountry = "BG"

// ShippingAddress is the buyer address snapshot stored on a transaction as jsonb.
type ShippingAddress struct {
	Name         string `json:"name" validate:"required,min=1,max=120"`
	AddressLine1 string `json:"address_line1" validate:"required,min=1,max=200"`
	AddressLine2 string `json:"address_line2,omitempty" validate:"max=200"`
	City         string `json:"city" validate:"required,min=1,max=120"`
	State        string `json:"state" validate:"required,min=1,max=120"`
	PostalCode   string `json:"postal_code" validate:"required,min=1,max=20"`
	Country      string `json:"country,omitempty" validate:"omitempty,len=2"`
}

// Normalize trims fields and fills the default country.
func (a ShippingAddress) Normalize() ShippingAddress {
	out := ShippingAddress{
		Name:         strings.TrimSpace(a.Name),
		AddressLine1: strings.TrimSpace(a.AddressLine1),
		AddressLine2: strings.TrimSpace(a.AddressLine2),
		City:         strings.TrimSpace(a.City),
		State:        strings.TrimSpace(a.State),
		PostalCode:   strings.TrimSpace(a.PostalCode),
		Country:      strings.ToUpper(strings.TrimSpace(a.Country)),
	}
	if out.Country == "" {
		out.Country = DefaultShippingCountry
	}
	return out
}

// Value stores the address as JSON.
func (a ShippingAddress) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("shipping address: %w", err)
	}
	return string(b), nil
}

// Scan decodes the JSON column.
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}
	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("shipping address: unsupported scan type %T", value)
	}
	if strings.TrimSpace(raw) == "" {
		*a = ShippingAddress{}
		return nil
	}
	return json.Unmarshal([]byte(raw), a)
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
