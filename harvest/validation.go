package harvest

import (
	"math"
	"strconv"
	"strings"
)

// MaxEntryTotal is the largest payment a single entry may carry. Above 2^53
// float64 can no longer hold every whole peso exactly.
const MaxEntryTotal = 1 << 53

// EntryForm is an entry submission as typed by the user.
type EntryForm struct {
	Name       string
	Kg         string
	PricePerKg string
}

// Parse converts form text into an EntryInput. Both "12.5" and "12,5" are
// accepted as decimals.
func (f EntryForm) Parse() (EntryInput, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return EntryInput{}, NewError(KindValidation, "name is required", nil)
	}
	kg, err := parseAmount("kg", f.Kg)
	if err != nil {
		return EntryInput{}, err
	}
	price, err := parseAmount("price_per_kg", f.PricePerKg)
	if err != nil {
		return EntryInput{}, err
	}
	input := EntryInput{Name: name, Kg: kg, PricePerKg: price}
	return input, ValidateEntryInput(input)
}

// NormalizeEntryInput trims the picker name.
func NormalizeEntryInput(input EntryInput) EntryInput {
	input.Name = strings.TrimSpace(input.Name)
	return input
}

// ValidateEntryInput rejects entries that would break the total invariant.
func ValidateEntryInput(input EntryInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return NewError(KindValidation, "name is required", nil)
	}
	if err := validateAmount("kg", input.Kg); err != nil {
		return err
	}
	if err := validateAmount("price_per_kg", input.PricePerKg); err != nil {
		return err
	}
	if math.Round(input.Kg*input.PricePerKg) > MaxEntryTotal {
		return NewError(KindValidation, "kg times price_per_kg is too large", nil)
	}
	return nil
}

func parseAmount(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, NewError(KindValidation, field+" is required", nil)
	}
	if !strings.Contains(raw, ".") {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, NewError(KindValidation, field+" must be a number", err)
	}
	return value, nil
}

func validateAmount(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewError(KindValidation, field+" must be a finite number", nil)
	}
	if value < 0 {
		return NewError(KindValidation, field+" must not be negative", nil)
	}
	return nil
}
