package x402

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// SchemeExact is the single-recipient payment scheme.
const SchemeExact = "exact"

// SchemeSplit is the multi-recipient payment scheme. Recipients live in the
// requirement's extra bag under "recipients" as basis-point allocations.
const SchemeSplit = "split"

// splitBpsTotal is the required sum of recipient allocations (100%).
const splitBpsTotal = 10000

// SplitRecipient is one recipient of a split payment.
type SplitRecipient struct {
	Address string `json:"address"`
	Bps     int    `json:"bps"`
	Label   string `json:"label,omitempty"`
}

// SplitRecipients parses the recipient list out of a split requirement's
// extra bag and validates it.
func SplitRecipients(req PaymentRequirement) ([]SplitRecipient, error) {
	if req.Scheme != SchemeSplit {
		return nil, fmt.Errorf("%w: scheme %q is not %q", ErrInvalidRequirement, req.Scheme, SchemeSplit)
	}

	raw, ok := req.Extra["recipients"]
	if !ok {
		return nil, fmt.Errorf("%w: split requirement has no recipients", ErrInvalidRequirement)
	}

	// The extra bag may hold typed structs or a JSON-decoded []any.
	rawBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequirement, err)
	}

	var recipients []SplitRecipient
	if err := json.Unmarshal(rawBytes, &recipients); err != nil {
		return nil, fmt.Errorf("%w: malformed recipients: %v", ErrInvalidRequirement, err)
	}

	if err := ValidateSplitRecipients(recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}

// ValidateSplitRecipients checks the split invariants: at least one
// recipient, every bps in [1, 10000], and the total exactly 10000.
func ValidateSplitRecipients(recipients []SplitRecipient) error {
	if len(recipients) == 0 {
		return fmt.Errorf("%w: split must have at least 1 recipient", ErrInvalidRequirement)
	}

	total := 0
	for _, r := range recipients {
		if r.Bps < 1 || r.Bps > splitBpsTotal {
			return fmt.Errorf("%w: recipient %s bps must be 1-10000, got %d",
				ErrInvalidRequirement, r.Address, r.Bps)
		}
		total += r.Bps
	}

	if total != splitBpsTotal {
		return fmt.Errorf("%w: recipient bps must sum to 10000, got %d", ErrInvalidRequirement, total)
	}
	return nil
}

// SplitShares computes each recipient's share of the total amount using
// floor division, with the remainder allocated to the first recipient.
func SplitShares(recipients []SplitRecipient, totalAmount *big.Int) ([]*big.Int, error) {
	if err := ValidateSplitRecipients(recipients); err != nil {
		return nil, err
	}

	shares := make([]*big.Int, len(recipients))
	distributed := new(big.Int)
	for i, r := range recipients {
		share := new(big.Int).Mul(totalAmount, big.NewInt(int64(r.Bps)))
		share.Div(share, big.NewInt(splitBpsTotal))
		shares[i] = share
		distributed.Add(distributed, share)
	}

	remainder := new(big.Int).Sub(totalAmount, distributed)
	shares[0].Add(shares[0], remainder)
	return shares, nil
}
