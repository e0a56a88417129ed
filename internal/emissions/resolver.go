package emissions

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// OutputPlaces is the number of decimal places kept in a kg CO2e result.
const OutputPlaces = 1

// Activity describes one logged activity to convert.
type Activity struct {
	Category    string
	Subcategory string // empty means the category base factor
	Quantity    float64
	Unit        string
}

// Resolver maps activities to kg CO2e using a Table. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	table *Table
}

// NewResolver constructs a Resolver. A nil table selects DefaultTable.
func NewResolver(table *Table) *Resolver {
	if table == nil {
		table = DefaultTable()
	}
	return &Resolver{table: table}
}

// Table exposes the table backing the resolver.
func (r *Resolver) Table() *Table {
	return r.table
}

// Resolve returns the CO2-equivalent mass in kilograms, rounded to OutputPlaces.
func (r *Resolver) Resolve(in Activity) (float64, error) {
	kg, err := r.ResolveDecimal(in)
	if err != nil {
		return 0, err
	}
	return kg.InexactFloat64(), nil
}

// ResolveDecimal is Resolve without the final float conversion.
func (r *Resolver) ResolveDecimal(in Activity) (decimal.Decimal, error) {
	kg, err := r.exact(in)
	if err != nil {
		return decimal.Zero, err
	}
	return kg.Round(OutputPlaces), nil
}

// exact computes quantity × multiplier × factor with no rounding.
func (r *Resolver) exact(in Activity) (decimal.Decimal, error) {
	cat, sub, err := r.lookup(in.Category, in.Subcategory)
	if err != nil {
		return decimal.Zero, err
	}

	multiplier, ok := cat.multiplier(sub, in.Unit)
	if !ok {
		return decimal.Zero, reject(ErrUnsupportedUnit, "unit", in.Unit)
	}

	quantity, err := quantityDecimal(in.Quantity)
	if err != nil {
		return decimal.Zero, err
	}

	factor := sub.factorOr(cat.baseFactor)
	return quantity.Mul(multiplier).Mul(factor), nil
}

// Convert expresses quantity in another accepted unit of the same category.
// The value is not rounded.
func (r *Resolver) Convert(category, subcategory string, quantity float64, from, to string) (float64, error) {
	cat, sub, err := r.lookup(category, subcategory)
	if err != nil {
		return 0, err
	}
	fromMultiplier, ok := cat.multiplier(sub, from)
	if !ok {
		return 0, reject(ErrUnsupportedUnit, "unit", from)
	}
	toMultiplier, ok := cat.multiplier(sub, to)
	if !ok {
		return 0, reject(ErrUnsupportedUnit, "unit", to)
	}
	q, err := quantityDecimal(quantity)
	if err != nil {
		return 0, err
	}
	return q.Mul(fromMultiplier).Div(toMultiplier).InexactFloat64(), nil
}

// CanonicalUnit reports the unit the category's factors are defined against.
func (r *Resolver) CanonicalUnit(category string) (string, error) {
	cat, ok := r.table.category(category)
	if !ok {
		return "", reject(ErrUnsupportedCategory, "category", category)
	}
	return cat.canonicalUnit, nil
}

// lookup applies the resolution order: recognised subcategory, else the base
// factor when the subcategory is absent. A present but unknown subcategory is
// rejected rather than silently falling back.
func (r *Resolver) lookup(category, subcategory string) (*categoryEntry, *subcategoryEntry, error) {
	cat, ok := r.table.category(category)
	if !ok {
		return nil, nil, reject(ErrUnsupportedCategory, "category", category)
	}

	if key := normalizeKey(subcategory); key != "" {
		sub, ok := cat.subcategories[key]
		if !ok {
			return nil, nil, reject(ErrUnsupportedSubcategory, "subcategory", subcategory)
		}
		return cat, &sub, nil
	}

	if cat.baseFactor == nil {
		return nil, nil, reject(ErrUnsupportedSubcategory, "subcategory", subcategory)
	}
	return cat, nil, nil
}

func (s *subcategoryEntry) factorOr(base *decimal.Decimal) decimal.Decimal {
	if s != nil {
		return s.factor
	}
	return *base
}

func quantityDecimal(q float64) (decimal.Decimal, error) {
	if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
		return decimal.Zero, reject(ErrInvalidQuantity, "quantity", strconv.FormatFloat(q, 'g', -1, 64))
	}
	return decimal.NewFromFloat(q), nil
}

// IsValidationError reports whether err is one of the resolver's rejections.
func IsValidationError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// Describe renders an activity as "category/subcategory quantity unit".
func Describe(in Activity) string {
	var b strings.Builder
	b.WriteString(in.Category)
	if in.Subcategory != "" {
		b.WriteByte('/')
		b.WriteString(in.Subcategory)
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(in.Quantity, 'f', -1, 64))
	b.WriteByte(' ')
	b.WriteString(in.Unit)
	return b.String()
}
