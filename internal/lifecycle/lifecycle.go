// Package lifecycle defines the checkout stages fee and shipment components
// take part in, and the orchestrator that runs them in registration order.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/noah-isme/toko-fees/internal/cart"
)

// CartObserver rebuilds its share of the cart fees after any cart change.
type CartObserver interface {
	OnCartChanged(ctx context.Context, c *cart.Cart) error
}

// CheckoutValidator inspects the checkout form before an order is created.
type CheckoutValidator interface {
	ValidateCheckout(ctx context.Context, c *cart.Cart, form CheckoutForm) ([]FieldError, error)
}

// OrderObserver enriches the order draft before it is persisted.
type OrderObserver interface {
	OnOrderCreated(ctx context.Context, c *cart.Cart, form CheckoutForm, draft *OrderDraft) error
}

// OrderRenderer contributes display lines to an order view.
type OrderRenderer interface {
	RenderOrder(view OrderView) []string
}

// Named lets components label their metrics and logs.
type Named interface {
	Name() string
}

// Orchestrator fans lifecycle stages out to the registered components.
type Orchestrator struct {
	cartObservers  []CartObserver
	validators     []CheckoutValidator
	orderObservers []OrderObserver
	renderers      []OrderRenderer
	observe        func(component string, err error)
}

// New builds an Orchestrator. Each component is registered for every stage interface it implements.
func New(components ...any) *Orchestrator {
	o := &Orchestrator{}
	for _, c := range components {
		o.Register(c)
	}
	return o
}

// WithObserver installs a callback invoked after each cart observer runs.
func (o *Orchestrator) WithObserver(fn func(component string, err error)) *Orchestrator {
	o.observe = fn
	return o
}

// Register adds a component to every stage it supports.
func (o *Orchestrator) Register(component any) {
	if c, ok := component.(CartObserver); ok {
		o.cartObservers = append(o.cartObservers, c)
	}
	if c, ok := component.(CheckoutValidator); ok {
		o.validators = append(o.validators, c)
	}
	if c, ok := component.(OrderObserver); ok {
		o.orderObservers = append(o.orderObservers, c)
	}
	if c, ok := component.(OrderRenderer); ok {
		o.renderers = append(o.renderers, c)
	}
}

// Recalculate runs the cart-changed stage. It satisfies cart.Recalculator.
func (o *Orchestrator) Recalculate(ctx context.Context, c *cart.Cart) error {
	for _, obs := range o.cartObservers {
		err := obs.OnCartChanged(ctx, c)
		if o.observe != nil {
			o.observe(nameOf(obs), err)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", nameOf(obs), err)
		}
	}
	return nil
}

// ValidateCheckout runs every validator and concatenates their field errors.
func (o *Orchestrator) ValidateCheckout(ctx context.Context, c *cart.Cart, form CheckoutForm) ([]FieldError, error) {
	var all []FieldError
	for _, v := range o.validators {
		errs, err := v.ValidateCheckout(ctx, c, form)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", nameOf(v), err)
		}
		all = append(all, errs...)
	}
	return all, nil
}

// OrderCreated runs the order-created stage against draft.
func (o *Orchestrator) OrderCreated(ctx context.Context, c *cart.Cart, form CheckoutForm, draft *OrderDraft) error {
	for _, obs := range o.orderObservers {
		if err := obs.OnOrderCreated(ctx, c, form, draft); err != nil {
			return fmt.Errorf("%s: %w", nameOf(obs), err)
		}
	}
	return nil
}

// RenderOrder collects display lines from every renderer.
func (o *Orchestrator) RenderOrder(view OrderView) []string {
	var lines []string
	for _, r := range o.renderers {
		lines = append(lines, r.RenderOrder(view)...)
	}
	return lines
}

func nameOf(component any) string {
	if n, ok := component.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", component)
}

var _ cart.Recalculator = (*Orchestrator)(nil)
