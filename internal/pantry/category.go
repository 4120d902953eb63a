package pantry

import "strings"

type Category string

const (
	CategoryProtein Category = "protein"
	CategoryDairy   Category = "dairy"
	CategoryFruit   Category = "fruit"
	CategoryProduce Category = "produce"
	CategoryPantry  Category = "pantry"
)

var categoryKeywords = []struct {
	category Category
	words    []string
}{
	// Dairy is checked before protein so "greek yogurt" is not mistaken for meat.
	{CategoryDairy, []string{"yogurt", "yoghurt", "cheese", "milk", "cottage", "kefir", "egg", "eggs", "butter", "cream"}},
	{CategoryProtein, []string{
		"chicken", "beef", "pork", "turkey", "lamb", "salmon", "tuna", "cod", "tilapia", "shrimp",
		"fish", "steak", "sausage", "bacon", "tofu", "tempeh", "thigh", "thighs", "breast", "loin",
		"ground", "duck", "halibut", "trout", "scallops", "ham", "chickpeas", "lentils",
	}},
	{CategoryFruit, []string{
		"apple", "apples", "banana", "bananas", "berries", "blueberries", "strawberries", "raspberries",
		"grapes", "orange", "oranges", "pear", "pears", "peach", "peaches", "mango", "pineapple",
		"melon", "kiwi", "cherries", "plum", "plums", "clementines",
	}},
	{CategoryPantry, []string{"rice", "pasta", "quinoa", "oats", "flour", "bread", "tortillas", "oil", "granola", "nuts", "almonds"}},
}

// Classify assigns a category from keywords in a normalized name. Anything
// unrecognised is treated as produce.
func Classify(name string) Category {
	words := strings.Fields(name)
	for _, group := range categoryKeywords {
		for _, kw := range group.words {
			for _, w := range words {
				if w == kw {
					return group.category
				}
			}
		}
	}
	return CategoryProduce
}

// IsSnackTypical reports whether an ingredient is normally eaten without cooking.
func IsSnackTypical(c Category) bool {
	return c == CategoryDairy || c == CategoryFruit
}
