package meal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidSketch = errors.New("invalid meal sketch")

// LooseInt accepts 25, 25.4, "25", "25g" or "about 30 minutes".
type LooseInt int

var leadingNumber = regexp.MustCompile(`\d+(\.\d+)?`)

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = LooseInt(int(f + 0.5))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number or string, got %s", data)
	}
	m := leadingNumber.FindString(s)
	if m == "" {
		return fmt.Errorf("no number in %q", s)
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return err
	}
	*n = LooseInt(int(f + 0.5))
	return nil
}

// LooseStrings accepts a list of strings, a single string, or a list of
// objects carrying a "name" field.
type LooseStrings []string

func (l *LooseStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitList(single)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expected list, got %s", data)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Name != "" {
			out = append(out, obj.Name)
			continue
		}
		return fmt.Errorf("unsupported list entry %s", item)
	}
	*l = out
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sketch is an untrusted suggestion from the meal generator. Quantities are
// never taken from it; the allocation engine decides those.
type Sketch struct {
	Title          string       `json:"title"`
	Kind           string       `json:"kind"`
	Protein        string       `json:"protein"`
	Ingredients    LooseStrings `json:"ingredients"`
	ProteinGrams   LooseInt     `json:"protein_grams"`
	TimeMinutes    LooseInt     `json:"time_minutes"`
	Servings       LooseInt     `json:"servings"`
	CookingMethods LooseStrings `json:"cooking_methods"`
}

// ParseSketches decodes a generator payload: either a JSON array of sketches
// or an object wrapping one under "meals", "snacks" or "candidates".
func ParseSketches(payload string) ([]Sketch, error) {
	payload = strings.TrimSpace(payload)
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")
	payload = strings.TrimSuffix(payload, "```")
	payload = strings.TrimSpace(payload)

	var list []Sketch
	if err := json.Unmarshal([]byte(payload), &list); err == nil {
		return list, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &wrapped); err != nil {
		return nil, fmt.Errorf("%w: not JSON: %v", ErrInvalidSketch, err)
	}
	for _, key := range []string{"meals", "snacks", "candidates"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: bad %q list: %v", ErrInvalidSketch, key, err)
		}
		return list, nil
	}

	var one Sketch
	if err := json.Unmarshal([]byte(payload), &one); err == nil && one.Title != "" {
		return []Sketch{one}, nil
	}
	return nil, fmt.Errorf("%w: no sketches in response", ErrInvalidSketch)
}

// Validate trims and checks a sketch, resolving its kind when the generator
// did not supply one.
func (s Sketch) Validate() (Sketch, error) {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return Sketch{}, fmt.Errorf("%w: missing title", ErrInvalidSketch)
	}

	var ingredients LooseStrings
	for _, ing := range s.Ingredients {
		if ing = strings.TrimSpace(ing); ing != "" {
			ingredients = append(ingredients, ing)
		}
	}
	s.Ingredients = ingredients
	s.Protein = strings.TrimSpace(s.Protein)
	if len(s.Ingredients) == 0 && s.Protein == "" {
		return Sketch{}, fmt.Errorf("%w: %q lists no ingredients", ErrInvalidSketch, s.Title)
	}

	if s.ProteinGrams < 0 || s.TimeMinutes < 0 || s.Servings < 0 {
		return Sketch{}, fmt.Errorf("%w: %q has negative values", ErrInvalidSketch, s.Title)
	}
	if s.Servings == 0 {
		s.Servings = 1
	}

	kind := strings.ToLower(strings.TrimSpace(s.Kind))
	if kind == "" {
		names := s.Ingredients
		if s.Protein != "" {
			names = append(LooseStrings{s.Protein}, names...)
		}
		kind = string(Classify(int(s.TimeMinutes), s.CookingMethods, names, int(s.ProteinGrams)))
	}
	if _, ok := ParseKind(kind); !ok {
		return Sketch{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidSketch, s.Kind)
	}
	s.Kind = kind
	return s, nil
}
