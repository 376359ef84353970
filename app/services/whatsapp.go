package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shashiranjanraj/leppupy/app/models"
)

const whatsAppEndpoint = "https://api.whatsapp.com/send"

// WhatsAppLink builds a click-to-chat link that opens a conversation with
// phone prefilled with text.
func WhatsAppLink(phone, text string) string {
	return whatsAppEndpoint + "?phone=" + escape(phone) + "&text=" + escape(text)
}

// escape percent-encodes s with spaces as %20, which WhatsApp renders
// literally in the prefilled message.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// OrderSummary is the message a client sends the shop after checkout.
func OrderSummary(clientName string, o models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola, soy %s.\n", clientName)
	fmt.Fprintf(&b, "Orden ID: %s\n", o.OrderID)
	fmt.Fprintf(&b, "Fecha de compra: %s\n", o.CreatedAt.Format(timestampLayout))
	fmt.Fprintf(&b, "Cantidad de pedidos: %d\n", o.ItemCount)
	fmt.Fprintf(&b, "Total de urnas: %d\n", o.TotalQuantity)
	fmt.Fprintf(&b, "Estado: %s\n", o.Status)
	return b.String()
}
