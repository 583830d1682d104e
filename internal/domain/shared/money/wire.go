package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidWireFormat = errors.New("money: expected {\"amountMinorUnits\": <integer>, \"currency\": \"<ISO code>\"}")

// wireMoney is the only JSON shape a monetary value is accepted or emitted in.
type wireMoney struct {
	AmountMinorUnits *int64 `json:"amountMinorUnits"`
	Currency         string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	amount := m.Amount
	return json.Marshal(wireMoney{AmountMinorUnits: &amount, Currency: m.Currency})
}

// UnmarshalJSON rejects bare numbers, decimal strings and unknown fields so a
// major-unit amount can never be read as minor units.
func (m *Money) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrInvalidWireFormat
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	var raw struct {
		AmountMinorUnits json.Number `json:"amountMinorUnits"`
		Currency         string      `json:"currency"`
	}
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWireFormat, err)
	}
	if raw.AmountMinorUnits == "" {
		return ErrInvalidWireFormat
	}
	amount, err := raw.AmountMinorUnits.Int64()
	if err != nil {
		return fmt.Errorf("%w: amountMinorUnits must be an integer", ErrInvalidWireFormat)
	}
	parsed, err := New(amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
