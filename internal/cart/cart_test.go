package cart

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantQty  string
		wantUnit string
	}{
		{"0.7 lb boneless skinless chicken breast", "boneless skinless chicken breast", "0.7", "lb"},
		{"12 carrots", "carrots", "12", "piece"},
		{"1 1/2 lbs ground beef", "ground beef", "1.5", "lb"},
		{"1 dozen eggs", "eggs", "12", "piece"},
		{"2 x apples", "apples", "2", "piece"},
		{"16 oz greek yogurt", "greek yogurt", "16", "oz"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			item, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine(%q) error: %v", tt.line, err)
			}
			if item.Name != tt.wantName {
				t.Errorf("name = %q, want %q", item.Name, tt.wantName)
			}
			if !item.Quantity.Equal(decimal.RequireFromString(tt.wantQty)) {
				t.Errorf("quantity = %s, want %s", item.Quantity, tt.wantQty)
			}
			if item.Unit != tt.wantUnit {
				t.Errorf("unit = %q, want %q", item.Unit, tt.wantUnit)
			}
		})
	}
}

func TestParseLine_Errors(t *testing.T) {
	if _, err := ParseLine("chicken breast"); !errors.Is(err, ErrNoQuantity) {
		t.Errorf("expected ErrNoQuantity, got %v", err)
	}
	if _, err := ParseLine("2 lb"); err == nil {
		t.Error("expected error for a line without a name")
	}
	if _, err := ParseLine("   "); err == nil {
		t.Error("expected error for an empty line")
	}
}

func TestParseText(t *testing.T) {
	input := `# weekly order
0.7 lb chicken breast

12 carrots
1 lb broccoli
`
	items, err := ParseText(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseText error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[2].Name != "broccoli" {
		t.Errorf("expected broccoli, got %q", items[2].Name)
	}

	if _, err := ParseText(strings.NewReader("carrots\n")); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("expected line-numbered error, got %v", err)
	}
}

func TestParseHTML_DataAttributes(t *testing.T) {
	html := `
	<html><body>
		<script>track()</script>
		<div class="order">
			<div data-item-name="Salmon Fillet" data-quantity="1.25" data-unit="lbs">Salmon</div>
			<div data-item-name="Lemons" data-quantity="3" data-unit="ct">Lemons</div>
		</div>
	</body></html>`

	items, err := ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("ParseHTML error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "Salmon Fillet" || items[0].Unit != "lb" || !items[0].Quantity.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].Unit != "piece" {
		t.Errorf("expected piece unit, got %q", items[1].Unit)
	}
}

func TestParseHTML_ListFallback(t *testing.T) {
	html := `
	<html><body>
		<ul>
			<li>Your order</li>
			<li>2 lb  pork loin</li>
			<li>6 zucchini</li>
		</ul>
		<footer><ul><li>1 free gift</li></ul></footer>
	</body></html>`

	items, err := ParseHTML(strings.NewReader(html))
	if err != nil {
		t.Fatalf("ParseHTML error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].Name != "pork loin" || items[1].Name != "zucchini" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestParseHTML_Empty(t *testing.T) {
	_, err := ParseHTML(strings.NewReader("<html><body><p>Thanks!</p></body></html>"))
	if !errors.Is(err, ErrNoItems) {
		t.Errorf("expected ErrNoItems, got %v", err)
	}
}
