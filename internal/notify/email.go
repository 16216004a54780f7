package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
	"github.com/three-sisters-oyster/api/internal/enum"
)

// EmailSender delivers the admin "new order" email through SendGrid.
type EmailSender struct {
	client    *sendgrid.Client
	fromEmail string
	toEmail   string
}

func NewEmailSender(apiKey, fromEmail, toEmail string) *EmailSender {
	return &EmailSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		toEmail:   toEmail,
	}
}

func (s *EmailSender) Kind() string {
	return enum.NotificationKindOrderEmail
}

func (s *EmailSender) Send(ctx context.Context, payload []byte) error {
	var p OrderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode order payload: %w", err)
	}

	from := mail.NewEmail("Three Sisters Oyster", s.fromEmail)
	to := mail.NewEmail("", s.toEmail)
	subject := fmt.Sprintf("New Order Received - %s", p.OrderID)
	msg := mail.NewSingleEmail(from, subject, to, "", formatOrderEmail(p))

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("send order email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send order email: sendgrid status %d", resp.StatusCode)
	}
	return nil
}

// formatOrderEmail renders the admin notification body.
func formatOrderEmail(p OrderPayload) string {
	var rows strings.Builder
	for _, item := range p.Items {
		price, _ := decimal.NewFromString(item.UnitPrice)
		lineTotal := price.Mul(decimal.NewFromInt32(item.Quantity))
		fmt.Fprintf(&rows,
			"<tr><td>%s</td><td>%d</td><td>$%s</td><td>$%s</td></tr>",
			item.Name, item.Quantity, price.StringFixed(2), lineTotal.StringFixed(2),
		)
	}

	phone := p.CustomerPhone
	if phone == "" {
		phone = "Not provided"
	}

	return fmt.Sprintf(`<html>
  <body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2>New Order Received</h2>
    <h3>Order Details</h3>
    <p><strong>Order ID:</strong> %s</p>
    <p><strong>Date:</strong> %s</p>
    <p><strong>Total:</strong> $%s</p>
    <h3>Customer Information</h3>
    <p><strong>Name:</strong> %s</p>
    <p><strong>Email:</strong> %s</p>
    <p><strong>Phone:</strong> %s</p>
    <h3>Shipping Address</h3>
    <p>%s</p>
    <p>%s, %s %s</p>
    <h3>Order Items</h3>
    <table style="width: 100%%; border-collapse: collapse;">
      <thead><tr><th>Item</th><th>Qty</th><th>Price</th><th>Total</th></tr></thead>
      <tbody>%s</tbody>
    </table>
    <p style="text-align: right; font-weight: bold;">Total: $%s</p>
  </body>
</html>`,
		p.OrderID,
		p.PlacedAt.Format("Jan 2, 2006 3:04 PM"),
		p.Total,
		p.CustomerName,
		p.CustomerEmail,
		phone,
		p.Address,
		p.City, p.State, p.ZipCode,
		rows.String(),
		p.Total,
	)
}
