package booking

import (
	"crypto/rand"
	"fmt"
)

// referenceAlphabet avoids 0/O and 1/I so support staff can read codes back
// over the phone.
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newBookingReference returns a short human-facing code such as "BK-7GQ2MX4T".
// Uniqueness is enforced by the database; at 32^8 values a retry is not worth
// coding for here.
func newBookingReference() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	for i := range b {
		b[i] = referenceAlphabet[int(b[i])%len(referenceAlphabet)]
	}

	return fmt.Sprintf("BK-%s", b), nil
}
