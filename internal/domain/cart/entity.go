// internal/domain/cart/entity.go
package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Item is what a catalog surface hands to the cart: a line without quantity.
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Variety   string          `json:"variety"`
	UnitPrice decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Age       string          `json:"age"`
	Image     string          `json:"image"`
}

// Line represents "one koi (product) entry" in a cart.
// There is exactly one Line per ID and Quantity is always >= 1.
type Line struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Variety   string          `json:"variety"`
	UnitPrice decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Age       string          `json:"age"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns UnitPrice * Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the in-memory cart state.
//   - Lines keep insertion order (stable for display)
//   - IsOpen is the drawer visibility flag; it is never persisted
//
// All operations are total: bad input is normalized, never rejected.
type Cart struct {
	Lines  []Line `json:"lines"`
	IsOpen bool   `json:"-"`
}

// New returns a closed cart holding lines (normalized and merged).
func New(lines []Line) *Cart {
	return &Cart{Lines: normalizeAndMerge(lines)}
}

// AddItem increments the quantity of item.ID, or appends a new line with quantity 1.
// An existing line keeps its attributes.
func (c *Cart) AddItem(item Item) {
	if c == nil {
		return
	}
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return
	}

	if idx := c.indexOf(id); idx >= 0 {
		c.Lines[idx].Quantity++
		return
	}

	c.Lines = append(c.Lines, lineFromItem(id, item))
}

// RemoveItem deletes the line for id. Absent id is a no-op.
func (c *Cart) RemoveItem(id string) {
	if c == nil {
		return
	}
	idx := c.indexOf(strings.TrimSpace(id))
	if idx < 0 {
		return
	}
	c.Lines = append(c.Lines[:idx:idx], c.Lines[idx+1:]...)
}

// UpdateQuantity sets the quantity for id.
// qty <= 0 removes the line; an absent id creates nothing.
func (c *Cart) UpdateQuantity(id string, qty int) {
	if c == nil {
		return
	}
	if qty <= 0 {
		c.RemoveItem(id)
		return
	}
	if idx := c.indexOf(strings.TrimSpace(id)); idx >= 0 {
		c.Lines[idx].Quantity = qty
	}
}

// Clear empties all lines.
func (c *Cart) Clear() {
	if c == nil {
		return
	}
	c.Lines = []Line{}
}

// SetOpen sets the drawer visibility flag.
func (c *Cart) SetOpen(open bool) {
	if c == nil {
		return
	}
	c.IsOpen = open
}

// Toggle flips the drawer visibility flag.
func (c *Cart) Toggle() {
	if c == nil {
		return
	}
	c.IsOpen = !c.IsOpen
}

// TotalItems returns the sum of quantities.
func (c *Cart) TotalItems() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// TotalPrice returns the sum of UnitPrice * Quantity.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ItemCount returns the quantity for id, or 0.
func (c *Cart) ItemCount(id string) int {
	if c == nil {
		return 0
	}
	if idx := c.indexOf(strings.TrimSpace(id)); idx >= 0 {
		return c.Lines[idx].Quantity
	}
	return 0
}

// Snapshot returns a copy of the lines, safe to hand to another goroutine.
func (c *Cart) Snapshot() []Line {
	if c == nil || len(c.Lines) == 0 {
		return []Line{}
	}
	out := make([]Line, len(c.Lines))
	copy(out, c.Lines)
	return out
}

// ----------------------------
// Helpers
// ----------------------------

func (c *Cart) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range c.Lines {
		if c.Lines[i].ID == id {
			return i
		}
	}
	return -1
}

func lineFromItem(id string, item Item) Line {
	price := item.UnitPrice
	if price.IsNegative() {
		price = decimal.Zero
	}
	return Line{
		ID:        id,
		Name:      strings.TrimSpace(item.Name),
		Variety:   strings.TrimSpace(item.Variety),
		UnitPrice: price,
		Size:      strings.TrimSpace(item.Size),
		Age:       strings.TrimSpace(item.Age),
		Image:     strings.TrimSpace(item.Image),
		Quantity:  1,
	}
}

// normalizeAndMerge drops lines without id or with quantity <= 0 and merges duplicates
// (quantities summed, first occurrence's attributes and position kept).
func normalizeAndMerge(src []Line) []Line {
	out := make([]Line, 0, len(src))
	pos := make(map[string]int, len(src))

	for _, l := range src {
		id := strings.TrimSpace(l.ID)
		if id == "" || l.Quantity <= 0 {
			continue
		}
		if i, ok := pos[id]; ok {
			out[i].Quantity += l.Quantity
			continue
		}

		n := lineFromItem(id, Item{
			Name:      l.Name,
			Variety:   l.Variety,
			UnitPrice: l.UnitPrice,
			Size:      l.Size,
			Age:       l.Age,
			Image:     l.Image,
		})
		n.Quantity = l.Quantity

		pos[id] = len(out)
		out = append(out, n)
	}
	return out
}
