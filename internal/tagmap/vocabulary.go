package tagmap

import orderedmap "github.com/wk8/go-ordered-map"

// Keyword vocabularies. Declaration order is significant: when several
// entries match, the first declared one wins.

var categoryKeywords = newKeywordMap(
	"top", []string{"t-shirt", "tshirt", "shirt", "blouse", "sweater", "hoodie", "sweatshirt", "tank top", "polo", "cardigan", "tee", "top"},
	"bottom", []string{"jeans", "pants", "trousers", "shorts", "skirt", "leggings", "chinos", "joggers"},
	"dress", []string{"dress", "gown", "jumpsuit", "romper"},
	"outerwear", []string{"jacket", "coat", "blazer", "parka", "vest", "windbreaker", "trench", "puffer"},
	"shoes", []string{"shoe", "sneaker", "boot", "sandal", "heel", "loafer", "trainer", "slipper"},
	"accessories", []string{"hat", "cap", "scarf", "belt", "glove", "sunglasses", "watch", "necklace", "bracelet", "earring", "jewelry"},
	"bags", []string{"bag", "backpack", "purse", "tote", "clutch", "wallet"},
)

var colors = []string{
	"black", "white", "navy", "beige", "burgundy", "gray", "grey", "blue", "green",
	"yellow", "orange", "purple", "pink", "brown", "cream", "khaki", "olive", "maroon", "red",
}

var seasonKeywords = newKeywordMap(
	"spring", []string{"spring"},
	"summer", []string{"summer", "beach", "swim"},
	"fall", []string{"fall", "autumn"},
	"winter", []string{"winter", "wool", "puffer", "parka", "fleece", "thermal", "snow"},
)

var occasionKeywords = newKeywordMap(
	"casual", []string{"casual", "everyday", "weekend", "relaxed"},
	"formal", []string{"formal", "evening", "gown", "tuxedo", "elegant"},
	"work", []string{"work", "office", "business", "professional"},
	"party", []string{"party", "cocktail", "sequin"},
	"sport", []string{"sport", "athletic", "running", "gym", "training", "yoga"},
	"travel", []string{"travel", "vacation"},
)

var materials = []string{
	"cotton", "linen", "wool", "cashmere", "silk", "satin", "leather", "suede",
	"denim", "polyester", "nylon", "spandex", "fleece", "velvet", "corduroy",
}

var brands = newKeywordMap(
	"Nike", []string{"nike"},
	"Adidas", []string{"adidas"},
	"Zara", []string{"zara"},
	"H&M", []string{"h&m"},
	"Uniqlo", []string{"uniqlo"},
	"Levi's", []string{"levi's", "levis"},
	"Gucci", []string{"gucci"},
	"Prada", []string{"prada"},
	"Puma", []string{"puma"},
	"The North Face", []string{"north face"},
	"Patagonia", []string{"patagonia"},
	"Ralph Lauren", []string{"ralph lauren"},
)

// newKeywordMap builds an ordered value -> keywords map from alternating
// name/keyword-list arguments.
func newKeywordMap(pairs ...any) *orderedmap.OrderedMap {
	m := orderedmap.New()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].([]string))
	}
	return m
}
