package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-fees/internal/common"
)

// Service administers volume discount rules.
type Service struct {
	Store Store
}

// Input is the admin payload for a rule.
type Input struct {
	Title     string `json:"title" validate:"required,max=200"`
	Threshold int    `json:"threshold" validate:"required,gte=1"`
	Percent   int    `json:"percent" validate:"required,gte=1,lte=100"`
}

// List returns every rule.
func (s *Service) List(ctx context.Context) ([]Rule, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("discount service not configured")
	}
	rules, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []Rule{}
	}
	return rules, nil
}

// Create validates and stores a new rule.
func (s *Service) Create(ctx context.Context, in Input) (Rule, error) {
	if s == nil || s.Store == nil {
		return Rule{}, errors.New("discount service not configured")
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := common.ValidateStruct(in); err != nil {
		return Rule{}, common.NewValidationError("invalid volume discount", common.FieldProblems(err))
	}
	r, err := s.Store.Create(ctx, Rule{ID: uuid.NewString(), Title: in.Title, Threshold: in.Threshold, Percent: in.Percent})
	return r, mapStoreError(err)
}

// Update validates and rewrites an existing rule.
func (s *Service) Update(ctx context.Context, id string, in Input) (Rule, error) {
	if s == nil || s.Store == nil {
		return Rule{}, errors.New("discount service not configured")
	}
	if _, err := uuid.Parse(id); err != nil {
		return Rule{}, fmt.Errorf("parse rule id: %w", ErrInvalidInput)
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := common.ValidateStruct(in); err != nil {
		return Rule{}, common.NewValidationError("invalid volume discount", common.FieldProblems(err))
	}
	if _, err := s.Store.Get(ctx, id); err != nil {
		return Rule{}, err
	}
	r, err := s.Store.Update(ctx, Rule{ID: id, Title: in.Title, Threshold: in.Threshold, Percent: in.Percent})
	return r, mapStoreError(err)
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s == nil || s.Store == nil {
		return errors.New("discount service not configured")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("parse rule id: %w", ErrInvalidInput)
	}
	if _, err := s.Store.Get(ctx, id); err != nil {
		return err
	}
	return s.Store.Delete(ctx, id)
}

// mapStoreError turns check constraint violations into validation errors.
func mapStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return common.NewValidationError("invalid volume discount", []common.FieldProblem{{Field: pgErr.ConstraintName, Rule: "check"}})
	}
	return err
}
