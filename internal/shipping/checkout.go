package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-fees/internal/cart"
	"github.com/noah-isme/toko-fees/internal/common"
	"github.com/noah-isme/toko-fees/internal/lifecycle"
)

// Checkout validates, captures and renders the shipping address. It takes part
// in the checkout-validate, order-created and order-rendered stages.
type Checkout struct {
	Calc      *Calculator
	Countries map[string]string

	once     sync.Once
	validate *validator.Validate
}

// addressRules mirrors the required fields of the applicable address block.
type addressRules struct {
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
	State   string `json:"state"`
	Country string `json:"country" validate:"omitempty,len=2,alpha"`
}

var fieldCodes = map[string]lifecycle.FieldError{
	"address": {Code: "missing_address", Message: "Please enter a shipping address"},
	"city":    {Code: "missing_city", Message: "Please enter a city for shipping"},
	"zip":     {Code: "missing_zip", Message: "Please enter a zip/postal code for shipping"},
	"state":   {Code: "missing_state", Message: "Please choose a state/province for shipping"},
	"country": {Code: "invalid_country", Message: "Please choose a valid country for shipping"},
}

// Name identifies the component in metrics and errors.
func (c *Checkout) Name() string { return "shipping_address" }

func (c *Checkout) rules() *validator.Validate {
	c.once.Do(func() {
		v := common.NewValidator()
		v.RegisterStructValidation(func(sl validator.StructLevel) {
			rules := sl.Current().Interface().(addressRules)
			if StatefulCountry(rules.Country) && rules.State == "" {
				sl.ReportError(rules.State, "state", "State", "state_required", rules.Country)
			}
		}, addressRules{})
		c.validate = v
	})
	return c.validate
}

// ValidateCheckout reports every missing address field when the cart ships.
func (c *Checkout) ValidateCheckout(ctx context.Context, ct *cart.Cart, form lifecycle.CheckoutForm) ([]lifecycle.FieldError, error) {
	needs, err := c.Calc.NeedsShipping(ctx, ct)
	if err != nil || !needs {
		return nil, err
	}
	block := "billing"
	if UsesShippingFields(form, ct.NoBillingFields) {
		block = "shipping"
	}
	addr := CaptureAddress(form, ct.NoBillingFields)
	err = c.rules().Struct(addressRules{
		Address: addr.Address,
		City:    addr.City,
		Zip:     addr.Zip,
		State:   addr.State,
		Country: addr.Country,
	})
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("validate shipping address: %w", err)
	}
	out := make([]lifecycle.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		tmpl, ok := fieldCodes[fe.Field()]
		if !ok {
			continue
		}
		tmpl.Field = block + "." + fe.Field()
		out = append(out, tmpl)
	}
	return out, nil
}

// OnOrderCreated attaches the address snapshot and the initial shipment status.
func (c *Checkout) OnOrderCreated(ctx context.Context, ct *cart.Cart, form lifecycle.CheckoutForm, draft *lifecycle.OrderDraft) error {
	needs, err := c.Calc.NeedsShipping(ctx, ct)
	if err != nil {
		return err
	}
	if !needs {
		draft.ShippingInfo = nil
		draft.ShipmentStatus = lifecycle.ShipmentNone
		return nil
	}
	raw, err := json.Marshal(CaptureAddress(form, ct.NoBillingFields))
	if err != nil {
		return fmt.Errorf("encode shipping address: %w", err)
	}
	draft.ShippingInfo = raw
	draft.ShipmentStatus = lifecycle.ShipmentPending
	return nil
}

// RenderOrder returns the display lines of the order's shipping snapshot.
func (c *Checkout) RenderOrder(view lifecycle.OrderView) []string {
	addr, ok, err := DecodeAddress(view.ShippingInfo)
	if err != nil || !ok {
		return nil
	}
	return RenderLines(addr, c.Countries)
}
