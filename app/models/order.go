package models

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UnknownClient labels orders whose owner no longer exists.
const UnknownClient = "Unknown client"

// Status is the order workflow state. Stored values are the labels the
// shop staff already use.
type Status string

const (
	StatusSubmitted  Status = "Enviado"
	StatusInProgress Status = "En Proceso"
	StatusDone       Status = "Terminado"
)

// Next returns the following state of the cycle
// Submitted → InProgress → Done → Submitted. Unknown values restart the
// cycle at Submitted.
func (s Status) Next() Status {
	switch s {
	case StatusSubmitted:
		return StatusInProgress
	case StatusInProgress:
		return StatusDone
	default:
		return StatusSubmitted
	}
}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	return s == StatusSubmitted || s == StatusInProgress || s == StatusDone
}

// LineItem is a copy of a cart entry taken at checkout.
type LineItem struct {
	EntryID   string             `bson:"entry_id"    json:"entry_id"`
	ProductID primitive.ObjectID `bson:"model"       json:"model"`
	Form      map[string]any     `bson:"forms_lleno" json:"forms_lleno"`
	AddedAt   time.Time          `bson:"created_at"  json:"created_at"`
}

// Order is created from a whole cart. Only Status changes afterwards.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID       string             `bson:"orden_id"      json:"orden_id"`
	Owner         string             `bson:"client_id"     json:"client_id"`
	CreatedAt     time.Time          `bson:"timestamp"     json:"timestamp"`
	Status        Status             `bson:"estado"        json:"estado"`
	LineItems     []LineItem         `bson:"productos"     json:"productos"`
	ItemCount     int                `bson:"total_pedidos" json:"total_pedidos"`
	TotalQuantity int                `bson:"total_urnas"   json:"total_urnas"`
}

// ProductIDs returns the distinct product ids referenced by the line items.
func (o Order) ProductIDs() []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(o.LineItems))
	var out []primitive.ObjectID
	for _, li := range o.LineItems {
		if !seen[li.ProductID] {
			seen[li.ProductID] = true
			out = append(out, li.ProductID)
		}
	}
	return out
}

// LineItemView is a line item with its product name resolved.
type LineItemView struct {
	LineItem `bson:",inline"`
	Model    string `json:"model_name"`
}

// OrderView is an order prepared for display.
type OrderView struct {
	ID            string         `json:"id"`
	OrderID       string         `json:"orden_id"`
	Owner         string         `json:"client_id"`
	ClientName    string         `json:"client_name,omitempty"`
	CreatedAt     time.Time      `json:"timestamp"`
	Status        Status         `json:"estado"`
	ItemCount     int            `json:"total_pedidos"`
	TotalQuantity int            `json:"total_urnas"`
	Products      []LineItemView `json:"productos"`
}

// CheckoutResult is returned by a successful checkout.
type CheckoutResult struct {
	Order        Order  `json:"order"`
	WhatsAppLink string `json:"whatsapp_link"`
}

// ClientOrders is one row of the top clients report.
type ClientOrders struct {
	ClientID string `json:"client_id"`
	Name     string `json:"client_name"`
	Orders   int    `json:"orders"`
}

// DailyOrders counts orders placed on Date (YYYY-MM-DD, UTC).
type DailyOrders struct {
	Date   string `json:"date"`
	Orders int    `json:"orders"`
}

// ProductSales is one row of the best sellers report.
type ProductSales struct {
	ProductID string `json:"product_id"`
	Model     string `json:"model"`
	Quantity  int    `json:"quantity"`
}

// Report aggregates the admin dashboard figures.
type Report struct {
	TopClients  []ClientOrders `json:"top_clients"`
	Daily       []DailyOrders  `json:"daily_orders"`
	BestSellers []ProductSales `json:"best_sellers"`
}

// Form field names, matched ignoring case.
var (
	QuantityFields = []string{"quantity", "cantidad"}
	FigureFields   = []string{"figura", "figure"}
)

// maxQuantity bounds a single line's unit count.
const maxQuantity = 1_000_000

// Quantity reads the unit count of a submitted form from one of
// QuantityFields. Missing, non-numeric, non-integral, negative and
// out-of-range values count as 0.
func Quantity(form map[string]any) int {
	v, ok := FormValue(form, QuantityFields...)
	if !ok {
		return 0
	}
	var n int64
	switch q := v.(type) {
	case int:
		n = int64(q)
	case int32:
		n = int64(q)
	case int64:
		n = q
	case float64:
		if q != math.Trunc(q) || q < 0 || q > maxQuantity {
			return 0
		}
		n = int64(q)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(q), 10, 64)
		if err != nil {
			return 0
		}
		n = i
	default:
		return 0
	}
	if n < 0 || n > maxQuantity {
		return 0
	}
	return int(n)
}

// IsFieldName reports whether name equals one of names ignoring case.
func IsFieldName(name string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}

// FormValue returns the first field of form whose name matches one of keys,
// ignoring case.
func FormValue(form map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := form[k]; ok {
			return v, true
		}
	}
	for name, v := range form {
		for _, k := range keys {
			if strings.EqualFold(name, k) {
				return v, true
			}
		}
	}
	return nil, false
}
