package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// IDLength size in bytes of an identifier
const IDLength = 32

// ID identifies an asset or an account. The ledger uses a single identifier space for both.
type ID [IDLength]byte

// ParseID parses the 0x-prefixed hex form of an identifier
func ParseID(s string) (ID, error) {
	var id ID
	raw := strings.TrimPrefix(s, "0x")
	if len(raw) != 2*IDLength {
		return id, fmt.Errorf("identifier %q: want %d hex digits, got %d", s, 2*IDLength, len(raw))
	}
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return id, fmt.Errorf("identifier %q: %w", s, err)
	}
	return id, nil
}

// MustParseID is like ParseID but panics on malformed input. Intended for constants and tests.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the 0x-prefixed hex form
func (id ID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Amount a quantity of an asset in its smallest unit
type Amount = uint256.Int

// Rate a conversion rate scaled by RateScale
type Rate = uint256.Int

// RateScale the fixed-point scale of a Rate. A rate of RateScale is 1:1.
const RateScale = 1_000_000

// DefaultRate is used for pairs that have no configured rate
func DefaultRate() Rate {
	return *uint256.NewInt(RateScale)
}

// ParseAmount parses a base-10 amount
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if err := a.SetFromDecimal(s); err != nil {
		return a, fmt.Errorf("amount %q: %w", s, err)
	}
	return a, nil
}

// ConversionRequest one leg of a batch conversion
type ConversionRequest struct {
	From   ID
	To     ID
	Amount Amount
}

// ConversionCompleted notification of a committed single conversion
type ConversionCompleted struct {
	From       ID
	To         ID
	FromAmount Amount
	ToAmount   Amount
}

// BatchCompleted notification of a committed batch conversion.
// Count is the length of the submitted batch, zero-amount legs included.
type BatchCompleted struct {
	Caller ID
	Count  int
	Total  Amount
}

// Symbol a ticker code used by external quote sources, e.g. USDC
type Symbol string

// Quotes maps a symbol to how many units of it one unit of the base symbol buys
type Quotes map[Symbol]decimal.Decimal

// Pair an ordered pair of symbols
type Pair struct {
	From Symbol
	To   Symbol
}

func (p Pair) String() string {
	return string(p.From) + "/" + string(p.To)
}
