package guardrail

import "regexp"

// Category is the human-readable class of a sensitive-request rule. It is the
// only part of a match ever disclosed to the user.
type Category string

const (
	CategoryPaymentInfo           Category = "payment info"
	CategoryPersonalIdentifiers   Category = "personal identifiers"
	CategoryPersonalAddresses     Category = "personal addresses"
	CategoryBulkContactExtraction Category = "bulk contact extraction"
	CategoryCredentials           Category = "credentials"
)

type rule struct {
	category Category
	re       *regexp.Regexp
}

// rules is the ordered pattern set for the deterministic stage. The first
// match wins. Patterns are matched against lower-cased input and are
// word-boundary anchored so that e.g. "pin" never fires inside "spinning".
var rules = []rule{
	// Payment and financial identifiers
	{CategoryPaymentInfo, regexp.MustCompile(`\bcredit\s*card\s*((number|num|details|info)\b|#)`)},
	{CategoryPaymentInfo, regexp.MustCompile(`\bcard\s*number\b`)},
	{CategoryPaymentInfo, regexp.MustCompile(`\bcc\s*number\b`)},
	{CategoryPaymentInfo, regexp.MustCompile(`\bpayment\s*card\s*details?\b`)},
	{CategoryPaymentInfo, regexp.MustCompile(`\bbank\s*account\s*((number|num)\b|#)`)},
	{CategoryPaymentInfo, regexp.MustCompile(`\baccount\s*number\b`)},
	{CategoryPaymentInfo, regexp.MustCompile(`\brouting\s*number\b`)},

	// Government identifiers
	{CategoryPersonalIdentifiers, regexp.MustCompile(`\bssn\b`)},
	{CategoryPersonalIdentifiers, regexp.MustCompile(`\bsocial\s*security\s*((number|num)\b|#)`)},
	{CategoryPersonalIdentifiers, regexp.MustCompile(`\bpassport\s*((number|num)\b|#)`)},
	{CategoryPersonalIdentifiers, regexp.MustCompile(`\bdriver'?s?\s*license\s*((number|num)\b|#)`)},

	// Physical addresses
	{CategoryPersonalAddresses, regexp.MustCompile(`\bhome\s*address\b`)},
	{CategoryPersonalAddresses, regexp.MustCompile(`\bpersonal\s*address\b`)},
	{CategoryPersonalAddresses, regexp.MustCompile(`\bresidential\s*address\b`)},
	{CategoryPersonalAddresses, regexp.MustCompile(`\bmailing\s*address\b`)},

	// Bulk contact extraction
	{CategoryBulkContactExtraction, regexp.MustCompile(`\ball\s*(customer|client|user)s?\s*(email|emails|address|addresses|contact|contacts)\b`)},
	{CategoryBulkContactExtraction, regexp.MustCompile(`\b(email|emails|address|addresses)\s*(list|all|every|dump)\b`)},
	{CategoryBulkContactExtraction, regexp.MustCompile(`\bphone\s*(number|numbers|list|all)\b`)},
	{CategoryBulkContactExtraction, regexp.MustCompile(`\bcontact\s*(list|all|every|dump)\b`)},

	// Credentials
	{CategoryCredentials, regexp.MustCompile(`\bpassword\b`)},
	{CategoryCredentials, regexp.MustCompile(`\bpin\s*((number|num|code)\b|#)`)},
	{CategoryCredentials, regexp.MustCompile(`\bsecurity\s*code\b`)},
}
