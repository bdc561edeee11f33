package shipping

import (
	"encoding/json"
	"strings"

	"github.com/noah-isme/toko-fees/internal/lifecycle"
)

// Address is the shipping address snapshot stored on an order.
type Address struct {
	Address  string `json:"address"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	State    string `json:"state,omitempty"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
}

// DefaultCountries names the countries shown on order views when no list is configured.
var DefaultCountries = map[string]string{
	"US": "United States",
	"CA": "Canada",
	"GB": "United Kingdom",
	"AU": "Australia",
	"DE": "Germany",
	"FR": "France",
	"ID": "Indonesia",
	"JP": "Japan",
	"NL": "Netherlands",
	"NZ": "New Zealand",
}

// StatefulCountry reports whether the country picks its state from a fixed list.
func StatefulCountry(country string) bool {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "US", "CA":
		return true
	}
	return false
}

// UsesShippingFields reports whether the checkout should read the distinct
// shipping block: the buyer asked for it or the gateway form has no billing fields.
func UsesShippingFields(form lifecycle.CheckoutForm, noBillingFields bool) bool {
	return form.UseDifferentShipping || noBillingFields
}

// CaptureAddress copies the applicable address block into a snapshot.
func CaptureAddress(form lifecycle.CheckoutForm, noBillingFields bool) Address {
	src := form.Billing
	if UsesShippingFields(form, noBillingFields) {
		src = form.Shipping
	}
	country := strings.ToUpper(strings.TrimSpace(src.Country))
	return Address{
		Address:  strings.TrimSpace(src.Address),
		Address2: strings.TrimSpace(src.Address2),
		City:     strings.TrimSpace(src.City),
		State:    strings.TrimSpace(pickState(src, country)),
		Zip:      strings.TrimSpace(src.Zip),
		Country:  country,
	}
}

func pickState(src lifecycle.AddressFields, country string) string {
	switch country {
	case "US":
		return src.StateUS
	case "CA":
		return src.StateCA
	default:
		return src.State
	}
}

// RenderLines formats a snapshot for display. A zero snapshot renders nothing.
func RenderLines(addr Address, countries map[string]string) []string {
	if addr == (Address{}) {
		return nil
	}
	lines := []string{addr.Address}
	if addr.Address2 != "" {
		lines = append(lines, addr.Address2)
	}
	locality := addr.City + ", " + addr.State + " " + addr.Zip
	if addr.State == "" {
		locality = addr.City + ", " + addr.Zip
	}
	lines = append(lines, strings.TrimSpace(locality))
	if addr.Country != "" {
		lines = append(lines, countryName(addr.Country, countries))
	}
	return lines
}

func countryName(code string, countries map[string]string) string {
	if name, ok := countries[code]; ok && name != "" {
		return name
	}
	if name, ok := DefaultCountries[code]; ok {
		return name
	}
	return code
}

// DecodeAddress parses a stored snapshot. Empty input yields ok=false.
func DecodeAddress(raw json.RawMessage) (Address, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Address{}, false, nil
	}
	var addr Address
	if err := json.Unmarshal(raw, &addr); err != nil {
		return Address{}, false, err
	}
	return addr, addr != (Address{}), nil
}
