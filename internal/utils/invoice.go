package utils

import (
	"fmt"
	"strings"
	"time"
)

const shortRefLen = 8

// ShortRef is the customer-facing order reference: the last 8 characters of
// the id, upper-cased.
func ShortRef(id string) string {
	ref := strings.ReplaceAll(id, "-", "")
	if len(ref) > shortRefLen {
		ref = ref[len(ref)-shortRefLen:]
	}
	return strings.ToUpper(ref)
}

// InvoiceNumber derives a stable invoice number from the order reference and
// placement time, so re-downloading an invoice yields the same number.
func InvoiceNumber(orderID string, placedAt time.Time) string {
	return fmt.Sprintf("INV-%s-%s", placedAt.UTC().Format("20060102"), ShortRef(orderID))
}
