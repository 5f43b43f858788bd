// Package sequence issues gapless document numbers per (doc type, period) key.
package sequence

import "fmt"

// Document type prefixes. Each combines with an optional period to form a
// counter key; counters start at 1 and never reuse a number.
const (
	DocTypeJournal         = "JE"
	DocTypeSalesInvoice    = "SI"
	DocTypePurchaseInvoice = "PI"
	DocTypeReceipt         = "RC"
	DocTypeDisbursement    = "PV"
)

// NoPeriodSegment is the serial segment used when no period governs the document.
const NoPeriodSegment = "NO-PERIOD"

// DocumentNumber renders a period-scoped serial, e.g. JE-2025-01-000007.
func DocumentNumber(docType, periodName string, n int64) string {
	if periodName == "" {
		periodName = NoPeriodSegment
	}
	return fmt.Sprintf("%s-%s-%06d", docType, periodName, n)
}

// InvoiceNumber renders an invoice serial without a period segment, e.g. SI-000042.
func InvoiceNumber(docType string, n int64) string {
	return fmt.Sprintf("%s-%06d", docType, n)
}
