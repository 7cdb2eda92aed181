// Package templates renders channel payloads for each notification kind.
// Every interpolated field goes through html/template, so payload values coming
// from other services cannot inject markup into the email body.
package templates

import (
	"bytes"
	"fmt"
	"html/template"

	"vn.io.arda/marketplace-notification/internal/domain"
)

// Email is a rendered email payload.
type Email struct {
	Subject string
	HTML    string
}

const layout = `{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#222">
{{template "content" .}}
<p style="color:#888;font-size:12px">This is an automated message, please do not reply.</p>
</body></html>{{end}}`

const orderConfirmation = `{{define "content"}}<h2>Thank you for your order!</h2>
<p>Your order <strong>{{.OrderNumber}}</strong> has been received.</p>
<table cellpadding="6" style="border-collapse:collapse">
<tr><th align="left">Product</th><th>Qty</th><th align="right">Price</th></tr>
{{range .Items}}<tr><td>{{.Label}}</td><td align="center">{{.Quantity}}</td><td align="right">{{money .Price}}</td></tr>
{{end}}<tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>{{money .Total}}</strong></td></tr>
</table>{{end}}`

const orderShipped = `{{define "content"}}<h2>Your order is on its way</h2>
<p>Order <strong>{{.OrderNumber}}</strong> has been shipped.</p>
{{if .TrackingNumber}}<p>Tracking code: <strong>{{.TrackingNumber}}</strong></p>{{end}}{{end}}`

const orderDelivered = `{{define "content"}}<h2>Your order has been delivered</h2>
<p>Order <strong>{{.OrderNumber}}</strong> was delivered. We hope you enjoy it!</p>{{end}}`

const generic = `{{define "content"}}<h2>{{.Subject}}</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{end}}`

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}

var (
	orderConfirmationTpl = mustParse("order_confirmation", orderConfirmation)
	orderShippedTpl      = mustParse("order_shipped", orderShipped)
	orderDeliveredTpl    = mustParse("order_delivered", orderDelivered)
	genericTpl           = mustParse("generic", generic)
)

func mustParse(name, content string) *template.Template {
	t := template.Must(template.New(name).Funcs(funcs).Parse(layout))
	return template.Must(t.Parse(content))
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

type itemRow struct {
	Label    string
	Quantity int
	Price    float64
}

// OrderConfirmation renders the items table and total.
func OrderConfirmation(o domain.OrderConfirmation) (Email, error) {
	rows := make([]itemRow, 0, len(o.Items))
	for _, it := range o.Items {
		label := it.Name
		if label == "" {
			label = it.ProductID
		}
		rows = append(rows, itemRow{Label: label, Quantity: it.Quantity, Price: it.Price})
	}
	html, err := execute(orderConfirmationTpl, struct {
		OrderNumber string
		Items       []itemRow
		Total       float64
	}{orderLabel(o.OrderNumber, o.OrderID), rows, o.Total})
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: "Order confirmation #" + orderLabel(o.OrderNumber, o.OrderID), HTML: html}, nil
}

func OrderShipped(s domain.ShipmentNotice) (Email, error) {
	html, err := execute(orderShippedTpl, struct {
		OrderNumber    string
		TrackingNumber string
	}{orderLabel(s.OrderNumber, s.OrderID), s.TrackingNumber})
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: "Your order #" + orderLabel(s.OrderNumber, s.OrderID) + " has shipped", HTML: html}, nil
}

func OrderDelivered(s domain.ShipmentNotice) (Email, error) {
	html, err := execute(orderDeliveredTpl, struct {
		OrderNumber string
	}{orderLabel(s.OrderNumber, s.OrderID)})
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: "Your order #" + orderLabel(s.OrderNumber, s.OrderID) + " was delivered", HTML: html}, nil
}

// Generic wraps free text in the standard layout, one paragraph per line.
func Generic(subject, content string) (Email, error) {
	html, err := execute(genericTpl, struct {
		Subject    string
		Paragraphs []string
	}{subject, splitLines(content)})
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: subject, HTML: html}, nil
}

func orderLabel(number, id string) string {
	if number != "" {
		return number
	}
	return id
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if line := s[start:i]; line != "" {
				out = append(out, line)
			}
			start = i + 1
		}
	}
	return out
}
