package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SettingTaxRate is the store_settings key holding the flat tax rate.
const SettingTaxRate = "tax_rate"

// TaxRates reads the tax rate from store settings, falling back to a configured rate
// when the row is absent. It implements pricing.TaxRateSource.
type TaxRates struct {
	Q        *Queries
	Fallback decimal.Decimal
}

// TaxRate implements pricing.TaxRateSource.
func (t TaxRates) TaxRate(ctx context.Context) (decimal.Decimal, error) {
	if t.Q == nil {
		return t.Fallback, nil
	}
	raw, err := t.Q.GetSetting(ctx, SettingTaxRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return t.Fallback, nil
		}
		return decimal.Zero, err
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid %s setting %q", SettingTaxRate, raw)
	}
	return rate, nil
}

// GetSetting returns the raw value of a store setting.
func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := q.db.QueryRow(ctx, `SELECT value FROM store_settings WHERE key = $1`, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("q.GetSetting: %w", err)
	}
	return value, nil
}

// PutSetting upserts a store setting.
func (q *Queries) PutSetting(ctx context.Context, key, value string) error {
	_, err := q.db.Exec(ctx, `INSERT INTO store_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("q.PutSetting: %w", err)
	}
	return nil
}
