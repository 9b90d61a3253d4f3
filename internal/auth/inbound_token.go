package auth

import "golang.org/x/crypto/bcrypt"

// HashInboundToken hashes a channel gateway token with configured cost.
func HashInboundToken(token string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareInboundToken verifies a presented token against its stored hash.
func CompareInboundToken(hashed, token string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(token))
}
