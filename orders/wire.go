package orders

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"billsplit/bill"
)

// OrderRecord is one order as returned by the order history endpoint.
type OrderRecord struct {
	ID       Text            `json:"id"`
	Total    Text            `json:"total"`
	Products []ProductRecord `json:"productos"`
}

type ProductRecord struct {
	ID        Text           `json:"id"`
	ProductID Text           `json:"id_producto"`
	Name      string         `json:"nombre_producto"`
	Quantity  Count          `json:"cantidad"`
	Subtotal  Text           `json:"subtotal"`
	Options   []OptionRecord `json:"opciones"`
	Notes     string         `json:"notas_personalizacion"`
	CreatedAt string         `json:"fecha_creacion"`
}

type OptionRecord struct {
	Name string `json:"nombre_opcion"`
}

// Text accepts a JSON string or number and keeps its text. Other values decode to "".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*t = Text(data)
	default:
		*t = ""
	}
	return nil
}

// Count accepts a JSON number or numeric string. Anything else decodes to 0.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	s := strings.TrimSpace(string(t))
	if n, err := strconv.Atoi(s); err == nil {
		*c = Count(n)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		*c = Count(int(f))
		return nil
	}
	*c = 0
	return nil
}

// Decode parses an order history payload: either a bare array of orders or an
// object carrying it under "data" or "pedidos".
func Decode(data []byte) ([]OrderRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Data    []OrderRecord `json:"data"`
			Pedidos []OrderRecord `json:"pedidos"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Data != nil {
			return wrapped.Data, nil
		}
		return wrapped.Pedidos, nil
	}
	var records []OrderRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Normalize converts wire records into core orders.
func Normalize(records []OrderRecord) []bill.Order {
	orders := make([]bill.Order, 0, len(records))
	for _, r := range records {
		order := bill.Order{
			ID:    string(r.ID),
			Total: string(r.Total),
			Lines: make([]bill.OrderLine, 0, len(r.Products)),
		}
		for _, p := range r.Products {
			options := make([]string, 0, len(p.Options))
			for _, o := range p.Options {
				options = append(options, o.Name)
			}
			order.Lines = append(order.Lines, bill.OrderLine{
				ID:        string(p.ID),
				ProductID: string(p.ProductID),
				Name:      p.Name,
				Quantity:  int(p.Quantity),
				Subtotal:  string(p.Subtotal),
				Options:   options,
				Notes:     p.Notes,
				CreatedAt: p.CreatedAt,
			})
		}
		orders = append(orders, order)
	}
	return orders
}
