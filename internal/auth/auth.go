package auth

import "fmt"

type Authenticator struct {
	store Store
}

func NewAuthenticator(store Store) *Authenticator {
	return &Authenticator{store: store}
}

func (a *Authenticator) Authenticate(username, password string) (*User, error) {
	u, err := a.store.GetUser(username)
	if err != nil {
		return nil, err
	}

	if !CheckPassword([]byte(u.Password), password) {
		return nil, fmt.Errorf("invalid credentials")
	}
	return u, nil
}

// IsOperator reports whether u may run admin commands that manage other
// accounts or mutate node state (CREATEUSER, DELUSER, CHECKPOINT,
// RECOVER).
func (u *User) IsOperator() bool {
	return u.Role == RoleOperator
}

// CanViewData reports whether u may run introspection commands that
// expose node contents (DUMP), as opposed to only its bare status.
func (u *User) CanViewData() bool {
	return u.Role == RoleOperator || u.Role == RoleViewer
}
