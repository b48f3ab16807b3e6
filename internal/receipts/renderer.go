package receipts

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Line is one purchased item on the receipt.
type Line struct {
	Name      string
	Quantity  int
	UnitPrice string
	Total     string
}

// Data feeds the receipt template. All amounts are pre-formatted strings.
type Data struct {
	StoreName    string
	OrderID      string
	CustomerName string
	Lines        []Line
	Total        string
	PaidAt       time.Time
}

const receiptTemplate = `<!DOCTYPE html>
<html>
<body>
  <h1>Thanks for your order, {{.CustomerName}}!</h1>
  <p>Order <strong>{{.OrderID}}</strong> was paid on {{.PaidAt.Format "Jan 2, 2006"}}.</p>
  <table>
    <thead>
      <tr><th>Item</th><th>Qty</th><th>Price</th><th>Total</th></tr>
    </thead>
    <tbody>
      {{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.Total}}</td></tr>
      {{end}}
    </tbody>
  </table>
  <p>Order total: <strong>{{.Total}}</strong></p>
  <p>{{.StoreName}}</p>
</body>
</html>`

// Renderer turns receipt data into the HTML body sent to customers.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the receipt template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("receipt").Parse(receiptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template against the provided data.
func (r *Renderer) Render(data Data) (string, error) {
	var out strings.Builder
	if err := r.tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render receipt: %w", err)
	}
	return out.String(), nil
}
