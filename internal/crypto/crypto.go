// Package crypto stands in for the authority signing collaborator (spec
// §6, Non-goal (a)): signatures are opaque byte strings, never real
// cryptographic constructions, and verification is a pluggable
// predicate.
package crypto

// Sign returns an opaque signature binding authorityID to orderID. It is
// deterministic so tests can assert on it, and carries no cryptographic
// guarantee.
func Sign(authorityID, orderID string) []byte {
	return []byte(authorityID + ":" + orderID)
}

// Verifier checks a signature produced by Sign. Callers that do not care
// about verification (spec Non-goal (a)) should use NoopVerifier.
type Verifier interface {
	Verify(authorityID, orderID string, signature []byte) bool
}

// NoopVerifier accepts every signature, matching the out-of-scope
// treatment of signature construction in spec §6.
type NoopVerifier struct{}

// Verify always reports true.
func (NoopVerifier) Verify(string, string, []byte) bool { return true }

// StrictVerifier checks the signature against the deterministic form
// produced by Sign. Useful in tests that want to assert a response
// actually carries the expected authority/order pairing.
type StrictVerifier struct{}

// Verify reports whether signature equals Sign(authorityID, orderID).
func (StrictVerifier) Verify(authorityID, orderID string, signature []byte) bool {
	want := Sign(authorityID, orderID)
	if len(want) != len(signature) {
		return false
	}
	for i := range want {
		if want[i] != signature[i] {
			return false
		}
	}
	return true
}
