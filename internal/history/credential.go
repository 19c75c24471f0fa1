package history

import "regexp"

const (
	// CredentialHexLength is the hex length of a raw 28-byte credential hash.
	CredentialHexLength = 56

	// byteaHexPrefix is the store's escape marker for a hex bytea literal.
	byteaHexPrefix = `\x`
)

var hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// IsRawCredential reports whether s is a raw credential in hex form.
func IsRawCredential(s string) bool {
	return len(s) == CredentialHexLength && hexPattern.MatchString(s)
}

// DerivePaymentCreds keeps the raw credentials in addresses and re-encodes them
// as bytea literals. Other strings are ignored here; they still match by address.
func DerivePaymentCreds(addresses []string) []string {
	creds := make([]string, 0)
	for _, addr := range addresses {
		if IsRawCredential(addr) {
			creds = append(creds, byteaHexPrefix+addr)
		}
	}
	return creds
}
