package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext credential at bcrypt's default cost. The
// result goes straight into the users.password column.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// ComparePassword reports a mismatch as bcrypt.ErrMismatchedHashAndPassword.
func ComparePassword(hashed string, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
