package nlp

import (
	"fmt"
	"strings"

	"github.com/dcosta/orderbot/internal/orderbot/catalog"
	"github.com/dcosta/orderbot/internal/orderbot/session"
)

// Cart is the reconciled result of matching a ParsedOrder against the catalog.
// It is ephemeral: the dispatcher copies Lines into the session before saving.
type Cart struct {
	// Lines holds one entry per unit ordered, in classifier order.
	Lines []session.CartLine
	// Total is the sum of unit prices across all lines.
	Total float64
	// UnmatchedIDs collects classifier ids that are not in the catalog.
	UnmatchedIDs []string
	// Address is carried through from the parsed order, possibly empty.
	Address string
}

// BuildCart reconciles the classifier's line items against the catalog.
// Quantities below 1 are clamped to 1 and each unit becomes its own cart
// line. Unknown ids are collected rather than aborting: partial matches never
// sink the whole order.
func BuildCart(order *ParsedOrder, cat *catalog.Catalog) Cart {
	var cart Cart
	cart.Address = order.Address

	for _, line := range order.Items {
		item, ok := cat.Lookup(line.CatalogID)
		if !ok {
			cart.UnmatchedIDs = append(cart.UnmatchedIDs, line.CatalogID)
			continue
		}

		quantity := line.Quantity
		if quantity < 1 {
			quantity = 1
		}
		for i := 0; i < quantity; i++ {
			cart.Lines = append(cart.Lines, session.CartLine{
				CatalogID:     item.ID,
				Description:   item.Description,
				UnitPrice:     item.Price,
				Modifications: line.Modifications,
			})
		}
		cart.Total += item.Price * float64(quantity)
	}

	return cart
}

// Summary renders the reconciled cart as an order confirmation message,
// grouping identical lines for readability.
func (c Cart) Summary() string {
	type group struct {
		label string
		count int
	}
	var groups []group
	index := make(map[string]int)

	for _, line := range c.Lines {
		label := line.Description
		if line.Modifications != "" {
			label += fmt.Sprintf(" (%s)", line.Modifications)
		}
		if i, ok := index[label]; ok {
			groups[i].count++
			continue
		}
		index[label] = len(groups)
		groups = append(groups, group{label: label, count: 1})
	}

	var b strings.Builder
	b.WriteString("🛒 ORDER CONFIRMED 🤖\n\n")
	b.WriteString("📦 Items:\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "  • %dx %s\n", g.count, g.label)
	}
	fmt.Fprintf(&b, "\n💰 Subtotal: %.2f\n", c.Total)
	b.WriteString("🚚 Delivery fee: to be confirmed.\n")
	if c.Address != "" {
		fmt.Fprintf(&b, "📍 Address: %s\n", c.Address)
	}
	return b.String()
}

// NextStepPrompt tells the party what happens next: an address request when
// none was extracted, a payment prompt otherwise.
func (c Cart) NextStepPrompt() string {
	if c.Address == "" {
		return "🗺️ Please provide your delivery address:\n(Street, Number, Neighborhood)\n\n" +
			"-----------------------------------\n*️⃣ - CANCEL order"
	}
	return "✅ Order placed successfully!\n\n" +
		"🔊 Please inform your payment method and whether you will need change.\n\n" +
		"⏳ An attendant will confirm your delivery fee shortly."
}
