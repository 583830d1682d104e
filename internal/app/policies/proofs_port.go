package policies

import "context"

// ProofVerifier answers whether a receipt reference submitted with a payment
// has been reviewed and accepted by the receipt-review process.
type ProofVerifier interface {
	Verified(ctx context.Context, bookingID, proofRef string) (bool, error)
}
