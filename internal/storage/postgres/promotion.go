package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/chorbazzar/internal/domain/pricing"
)

const (
	getPromotionByCodeSQL = `SELECT code, discount_type, value, min_items, description,
		max_discount, valid_from, valid_until
		FROM promotions WHERE code = UPPER($1) AND active = TRUE`

	listPromotionCodesSQL = `SELECT code FROM promotions WHERE active = TRUE ORDER BY code`

	upsertPromotionSQL = `INSERT INTO promotions (code, discount_type, value, min_items, description,
			max_discount, valid_from, valid_until, active)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, TRUE)
		ON CONFLICT (code) DO UPDATE SET discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value, min_items = EXCLUDED.min_items,
			description = EXCLUDED.description, max_discount = EXCLUDED.max_discount,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until, active = TRUE`
)

var (
	_ pricing.Registry = (*PromotionRepository)(nil)
	_ pricing.Lister   = (*PromotionRepository)(nil)
)

// PromotionRepository implements pricing.Registry backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// Lookup finds an active promotion by its code (case-insensitive).
// Returns pricing.ErrUnknownCode when no matching active promotion exists.
func (r *PromotionRepository) Lookup(ctx context.Context, code string) (*pricing.Rule, error) {
	rows, err := r.pool.Query(ctx, getPromotionByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promotion %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pricing.ErrUnknownCode
		}
		return nil, fmt.Errorf("finding promotion %q: %w", code, err)
	}
	return &rule, nil
}

// Codes lists every active promotion code.
func (r *PromotionRepository) Codes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listPromotionCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promotion codes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Upsert inserts or replaces a promotion rule and marks it active.
func (r *PromotionRepository) Upsert(ctx context.Context, rule pricing.Rule) error {
	_, err := r.pool.Exec(ctx, upsertPromotionSQL,
		rule.Code, string(rule.DiscountType), rule.Value, int32(rule.MinItems),
		rule.Description, rule.MaxDiscount, rule.ValidFrom, rule.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("upserting promotion %q: %w", rule.Code, err)
	}
	return nil
}

func scanRule(row pgx.CollectableRow) (pricing.Rule, error) {
	var (
		rule         pricing.Rule
		discountType string
		value        decimal.Decimal
		minItems     int32
		maxDiscount  decimal.Decimal
		validFrom    *time.Time
		validUntil   *time.Time
	)
	err := row.Scan(
		&rule.Code, &discountType, &value, &minItems, &rule.Description,
		&maxDiscount, &validFrom, &validUntil,
	)
	rule.DiscountType = pricing.DiscountType(discountType)
	rule.Value = value
	rule.MinItems = int(minItems)
	rule.MaxDiscount = maxDiscount
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	return rule, err
}
