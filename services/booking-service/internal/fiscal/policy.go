package fiscal

import "strings"

// DGII document-type prefixes. B-series are standard paper comprobantes,
// E-series their electronic equivalents.
const (
	PrefixConsumer            = "B02"
	PrefixTaxCredit           = "B01"
	PrefixConsumerElectronic  = "E32"
	PrefixTaxCreditElectronic = "E31"
)

// PrefixFor applies the caller-side document-type rule: a payer without an
// RNC gets a consumer receipt, a payer supplying one gets a tax-credit
// receipt; electronic switches both to the E-series. The allocator itself is
// prefix-agnostic, so this must run before Allocate.
func PrefixFor(clientRNC string, electronic bool) string {
	hasRNC := strings.TrimSpace(clientRNC) != ""
	switch {
	case hasRNC && electronic:
		return PrefixTaxCreditElectronic
	case hasRNC:
		return PrefixTaxCredit
	case electronic:
		return PrefixConsumerElectronic
	default:
		return PrefixConsumer
	}
}
