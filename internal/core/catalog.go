package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	Category  string
	Currency  string
	Frequency string
)

const (
	Food      Category = "Food"
	Transport Category = "Transport"
	Other     Category = "Other"
)

const (
	MKD Currency = "MKD"
	EUR Currency = "EUR"
	USD Currency = "USD"
)

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Frequencies lists the supported recurrence frequencies; Monthly is the default.
var Frequencies = []Frequency{Weekly, Monthly, Yearly}

// NormalizeFrequency maps any unsupported value to Monthly.
func NormalizeFrequency(f Frequency) Frequency {
	switch Frequency(strings.ToLower(strings.TrimSpace(string(f)))) {
	case Weekly:
		return Weekly
	case Yearly:
		return Yearly
	default:
		return Monthly
	}
}

// Catalog is the fixed configuration of categories and currencies.
// Rates are expressed in USD per unit of the currency.
type Catalog struct {
	Categories      []Category
	Currencies      []Currency
	Rates           map[Currency]float64
	DefaultCurrency Currency
}

// DefaultCatalog returns the built-in categories and static exchange rates.
func DefaultCatalog() Catalog {
	return Catalog{
		Categories: []Category{Food, Transport, Other},
		Currencies: []Currency{MKD, EUR, USD},
		Rates: map[Currency]float64{
			MKD: 0.0176,
			EUR: 1.08,
			USD: 1,
		},
		DefaultCurrency: MKD,
	}
}

// Validate reports every inconsistency in the catalog.
func (c Catalog) Validate() error {
	var errs []error
	if len(c.Categories) == 0 {
		errs = append(errs, errors.New("catalog has no categories"))
	}
	if len(c.Currencies) == 0 {
		errs = append(errs, errors.New("catalog has no currencies"))
	}
	for _, cur := range c.Currencies {
		if r, ok := c.Rates[cur]; !ok || r <= 0 {
			errs = append(errs, fmt.Errorf("currency %s has no positive rate", cur))
		}
	}
	if _, ok := c.Rates[c.DefaultCurrency]; !ok {
		errs = append(errs, fmt.Errorf("default currency %q is not in the catalog", c.DefaultCurrency))
	}
	return errors.Join(errs...)
}

// DefaultCategory is the first configured category.
func (c Catalog) DefaultCategory() Category {
	if len(c.Categories) == 0 {
		return Other
	}
	return c.Categories[0]
}

func (c Catalog) HasCategory(cat Category) bool {
	for _, known := range c.Categories {
		if known == cat {
			return true
		}
	}
	return false
}

func (c Catalog) HasCurrency(cur Currency) bool {
	_, ok := c.Rates[cur]
	return ok
}

// NormalizeCategory returns cat when known, otherwise the default category.
func (c Catalog) NormalizeCategory(cat Category) Category {
	if c.HasCategory(cat) {
		return cat
	}
	return c.DefaultCategory()
}

// NormalizeCurrency returns cur when known, otherwise the default currency.
// Codes are matched case-insensitively.
func (c Catalog) NormalizeCurrency(cur Currency) Currency {
	up := Currency(strings.ToUpper(strings.TrimSpace(string(cur))))
	if c.HasCurrency(up) {
		return up
	}
	return c.DefaultCurrency
}

// Rate returns the USD rate of cur, falling back to the default currency.
func (c Catalog) Rate(cur Currency) float64 {
	if r, ok := c.Rates[cur]; ok {
		return r
	}
	return c.Rates[c.DefaultCurrency]
}

// Convert converts amount from one currency to another through USD.
func (c Catalog) Convert(amount float64, from, to Currency) float64 {
	if from == to {
		return amount
	}
	rateTo := c.Rate(to)
	if rateTo == 0 {
		return 0
	}
	v := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(c.Rate(from))).
		Div(decimal.NewFromFloat(rateTo))
	f, _ := v.Float64()
	return f
}
