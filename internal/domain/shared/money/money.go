package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrNegativeAmount   = errors.New("money: amount cannot be negative")
	ErrInvalidRate      = errors.New("money: invalid percentage")
	ErrOutOfRange       = errors.New("money: amount out of range")
)

// Money is an exact amount in the currency's minor units (paisa, cents, ...).
// Values are never negative and never carry fractional minor units.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating currency and sign.
func New(amount int64, currency string) (Money, error) {
	code, err := normalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	if amount < 0 {
		return Money{}, ErrNegativeAmount
	}
	return Money{Amount: amount, Currency: code}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) (Money, error) {
	return New(0, currency)
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	sum := m.Amount + other.Amount
	if sum < m.Amount {
		return Money{}, ErrOutOfRange
	}
	return Money{Amount: sum, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver. A result below zero is an error,
// callers compare first when a shortfall is an expected outcome.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	if other.Amount > m.Amount {
		return Money{}, fmt.Errorf("%w: %d - %d %s", ErrNegativeAmount, m.Amount, other.Amount, m.Currency)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// PercentageOf returns pct percent of the amount rounded to the nearest minor
// unit, halves rounding up (12.5 -> 13). pct is a plain percentage, 10 means 10%.
func (m Money) PercentageOf(pct decimal.Decimal) (Money, error) {
	if m.Currency == "" {
		return Money{}, ErrInvalidCurrency
	}
	if pct.IsNegative() {
		return Money{}, ErrInvalidRate
	}
	// Shift(-2) divides by 100 exactly; Round is half away from zero, which is
	// half-up for non-negative values.
	exact := decimal.NewFromInt(m.Amount).Mul(pct).Shift(-2)
	rounded := exact.Round(0)
	if !rounded.BigInt().IsInt64() {
		return Money{}, ErrOutOfRange
	}
	return Money{Amount: rounded.IntPart(), Currency: m.Currency}, nil
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Compare returns -1, 0 or 1 as m is less than, equal to or greater than other.
func (m Money) Compare(other Money) (int, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// Validate checks the invariants of a value built outside New (decoded rows).
func (m Money) Validate() error {
	if _, err := normalizeCurrency(m.Currency); err != nil {
		return err
	}
	if m.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return nil
}

func normalizeCurrency(currency string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return code, nil
}
