package hash

import "golang.org/x/crypto/bcrypt"

// dummyHash is compared against when a username is unknown so that lookups of
// missing and existing users cost the same.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("school-admin-dummy"), bcrypt.DefaultCost)

func HashPassword(password string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashbytes), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BurnCompare performs a throwaway comparison and always reports false.
func BurnCompare(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return false
}
