package auth

import "golang.org/x/crypto/bcrypt"

// APIKeyVerifier checks collaborator keys against a stored bcrypt hash.
type APIKeyVerifier struct {
	hash []byte
}

func NewAPIKeyVerifier(hash string) *APIKeyVerifier {
	return &APIKeyVerifier{hash: []byte(hash)}
}

// HashAPIKey returns the bcrypt hash to store in EMITTER_API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Enabled reports whether a hash has been configured.
func (v *APIKeyVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

// Verify returns true when key matches the configured hash.
func (v *APIKeyVerifier) Verify(key string) bool {
	if !v.Enabled() || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(key)) == nil
}
