package cart

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is one purchased line from the cart source.
type Item struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

var ErrNoQuantity = errors.New("no quantity found")

// quantityPattern matches "2", "0.7", "1/2" or "1 1/2" followed by an optional unit word.
var quantityPattern = regexp.MustCompile(`^\s*(\d+\s+\d+/\d+|\d+/\d+|\d*\.?\d+)\s*([a-zA-Z.]*)`)

var unitAliases = map[string]string{
	"lb":     "lb",
	"lbs":    "lb",
	"pound":  "lb",
	"pounds": "lb",
	"oz":     "oz",
	"ounce":  "oz",
	"ounces": "oz",
	"kg":     "kg",
	"g":      "g",
	"gram":   "g",
	"grams":  "g",
	"ct":     "piece",
	"count":  "piece",
	"each":   "piece",
	"ea":     "piece",
	"pc":     "piece",
	"pcs":    "piece",
	"piece":  "piece",
	"pieces": "piece",
	"dozen":  "dozen",
	"doz":    "dozen",
	"cup":    "cup",
	"cups":   "cup",
	"bunch":  "bunch",
	"head":   "head",
	"bag":    "bag",
	"pint":   "pint",
	"qt":     "quart",
	"quart":  "quart",
}

// NormalizeUnit maps unit spellings onto the canonical set. Unknown units are
// lower-cased and kept; an empty unit means a count of pieces.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(unit), "."))
	if u == "" {
		return "piece"
	}
	if canonical, ok := unitAliases[u]; ok {
		return canonical
	}
	return u
}

// ParseQuantity reads a leading quantity and unit such as "0.7 lb", "12 ct" or
// "1 1/2 lb". Dozens are converted to pieces.
func ParseQuantity(text string) (decimal.Decimal, string, error) {
	m := quantityPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, "", fmt.Errorf("%w in %q", ErrNoQuantity, text)
	}

	qty, err := parseNumber(m[1])
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("invalid quantity %q: %w", m[1], err)
	}

	unit := NormalizeUnit(m[2])
	if _, known := unitAliases[strings.ToLower(strings.TrimSuffix(m[2], "."))]; !known && m[2] != "" {
		// The word after the number is part of the name ("3 carrots").
		unit = "piece"
	}
	if unit == "dozen" {
		return qty.Mul(decimal.NewFromInt(12)), "piece", nil
	}
	return qty, unit, nil
}

func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	whole := decimal.Zero
	if parts := strings.Fields(s); len(parts) == 2 {
		w, err := decimal.NewFromString(parts[0])
		if err != nil {
			return decimal.Zero, err
		}
		whole = w
		s = parts[1]
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := decimal.NewFromString(num)
		if err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(den)
		if err != nil {
			return decimal.Zero, err
		}
		if d.IsZero() {
			return decimal.Zero, errors.New("zero denominator")
		}
		return whole.Add(n.DivRound(d, 4)), nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return whole.Add(v), nil
}

// ParseLine parses "<quantity> [unit] <name>" lines, e.g. "0.7 lb boneless
// skinless chicken breast" or "12 carrots".
func ParseLine(line string) (Item, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Item{}, errors.New("empty cart line")
	}

	m := quantityPattern.FindStringSubmatchIndex(line)
	if m == nil {
		return Item{}, fmt.Errorf("%w in %q", ErrNoQuantity, line)
	}

	qty, unit, err := ParseQuantity(line)
	if err != nil {
		return Item{}, err
	}

	rest := line[m[3]:]
	unitWord := line[m[4]:m[5]]
	if _, known := unitAliases[strings.ToLower(strings.TrimSuffix(unitWord, "."))]; known {
		rest = line[m[5]:]
	}

	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "x "))
	if name == "" {
		return Item{}, fmt.Errorf("cart line %q has no item name", line)
	}
	return Item{Name: name, Quantity: qty, Unit: unit}, nil
}

// ParseText reads one item per line, skipping blank lines and "#" comments.
func ParseText(r io.Reader) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		item, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	return items, nil
}
