package cart

import "github.com/shopspring/decimal"

// StorageKey is the single slot the whole cart blob is stored under.
const StorageKey = "@GoMarketplace:products"

// Item is one cart line. Its JSON form is the persisted blob format.
type Item struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Product is an Item without a quantity, the input of AddToCart.
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

// Snapshot is what subscribers receive after every state change.
type Snapshot struct {
	Items    []Item
	Revision uint64
}

// Subtotal sums price*quantity without float accumulation drift.
func Subtotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func indexOf(items []Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
