// Package catalog holds the static set of orderable items and prices.
// The catalog is loaded once at startup (from a YAML file or the built-in
// default) and is read-only afterwards.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item is one orderable catalog entry.
type Item struct {
	ID          string  `yaml:"id"`
	Description string  `yaml:"description"`
	Price       float64 `yaml:"price"`
}

// file is the on-disk YAML document layout.
type file struct {
	Items         []Item   `yaml:"items"`
	Neighborhoods []string `yaml:"neighborhoods,omitempty"`
}

// Catalog is an immutable id → Item mapping plus the list of neighborhoods
// the shop delivers to. Safe for concurrent reads.
type Catalog struct {
	items         map[string]Item
	order         []string
	neighborhoods []string
}

// defaultItems mirrors the shop's standing menu, used when no catalog file
// is configured.
var defaultItems = []Item{
	{ID: "1", Description: "AL Ain Milk", Price: 6},
	{ID: "2", Description: "Apple", Price: 6},
	{ID: "3", Description: "Sugar", Price: 6},
	{ID: "4", Description: "Onion", Price: 6},
	{ID: "5", Description: "Tomato", Price: 6},
}

var defaultNeighborhoods = []string{
	"Downtown", "Riverside", "Old Town", "Harbor District", "Greenfield",
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := build(file{Items: defaultItems, Neighborhoods: defaultNeighborhoods})
	if err != nil {
		// The built-in items are validated at test time; a failure here is a
		// programming error.
		panic(err)
	}
	return c
}

// Load reads and validates a catalog YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog YAML document and validates it.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog parse: %w", err)
	}
	if len(f.Neighborhoods) == 0 {
		f.Neighborhoods = defaultNeighborhoods
	}
	return build(f)
}

func build(f file) (*Catalog, error) {
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one item")
	}

	items := make(map[string]Item, len(f.Items))
	order := make([]string, 0, len(f.Items))
	for i, item := range f.Items {
		if strings.TrimSpace(item.ID) == "" {
			return nil, fmt.Errorf("items[%d]: id must not be empty", i)
		}
		if strings.TrimSpace(item.Description) == "" {
			return nil, fmt.Errorf("items[%d] (%q): description must not be empty", i, item.ID)
		}
		if item.Price <= 0 {
			return nil, fmt.Errorf("items[%d] (%q): price must be positive, got %v", i, item.ID, item.Price)
		}
		if _, exists := items[item.ID]; exists {
			return nil, fmt.Errorf("duplicate item id %q", item.ID)
		}
		items[item.ID] = item
		order = append(order, item.ID)
	}

	return &Catalog{
		items:         items,
		order:         order,
		neighborhoods: f.Neighborhoods,
	}, nil
}

// Lookup returns the item for the given id, if present.
func (c *Catalog) Lookup(id string) (Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Items returns all entries in file order.
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Neighborhoods returns the delivery areas listed in the catalog file.
func (c *Catalog) Neighborhoods() []string {
	return c.neighborhoods
}

// PromptDescription renders the catalog as one line per item, the form the
// natural-language classifier is shown:
//
//	ID 1: AL Ain Milk - 6.00
func (c *Catalog) PromptDescription() string {
	var b strings.Builder
	for _, id := range c.order {
		item := c.items[id]
		fmt.Fprintf(&b, "ID %s: %s - %.2f\n", item.ID, item.Description, item.Price)
	}
	return b.String()
}

// Keywords returns every lowercase word of every item description. The NL
// pre-filter uses them to spot catalog-adjacent messages without an external
// call.
func (c *Catalog) Keywords() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range c.order {
		for _, word := range strings.Fields(strings.ToLower(c.items[id].Description)) {
			if len(word) < 3 {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			out = append(out, word)
		}
	}
	return out
}
