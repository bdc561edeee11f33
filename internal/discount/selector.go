package discount

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-fees/internal/cart"
	"github.com/noah-isme/toko-fees/internal/fees"
)

// RuleSource lists the configured volume discount rules.
type RuleSource interface {
	List(ctx context.Context) ([]Rule, error)
}

// Selector keeps the volume discount fee in sync with the cart.
type Selector struct {
	Rules RuleSource
	Log   *zerolog.Logger
}

// Name identifies the component in metrics and errors.
func (s *Selector) Name() string { return "volume_discount" }

// OnCartChanged adds, replaces or removes the volume discount fee.
func (s *Selector) OnCartChanged(ctx context.Context, c *cart.Cart) error {
	if c.IsEmpty() {
		c.Fees.Remove(FeeKey)
		return nil
	}
	rules, err := s.Rules.List(ctx)
	if err != nil {
		return err
	}
	rule, ok := Select(rules, c.ItemCount())
	amount := int64(0)
	if ok {
		amount = Amount(c.Subtotal(), rule.Percent)
	}
	if amount == 0 {
		c.Fees.Remove(FeeKey)
		return nil
	}
	c.Fees.Add(fees.Fee{Key: FeeKey, Label: rule.Title, Amount: amount})
	if s.Log != nil {
		s.Log.Debug().Str("cart_id", c.ID).Str("rule_id", rule.ID).
			Int("items", c.ItemCount()).Int64("amount", amount).Msg("volume discount applied")
	}
	return nil
}
