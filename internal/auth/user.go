package auth

import (
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	// RoleOperator may run every admin command: CREATEUSER/DELUSER,
	// CHECKPOINT, RECOVER, plus everything below.
	RoleOperator Role = "operator"
	// RoleViewer may inspect node state (STATS, DUMP) but not mutate it
	// or manage other accounts.
	RoleViewer Role = "viewer"
	// RoleReadonly may only run STATS; DUMP and every mutating command
	// are refused.
	RoleReadonly Role = "readonly"
)

type User struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Basic password hashing - might be fun to implement from scratch later
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

func CheckPassword(hash []byte, plain string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain)) == nil
}
