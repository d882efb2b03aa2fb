package auth_test

import (
	"testing"

	"hill/internal/auth"
)

func TestRolePermissionsAreDistinct(t *testing.T) {
	operator := &auth.User{Role: auth.RoleOperator}
	viewer := &auth.User{Role: auth.RoleViewer}
	readonly := &auth.User{Role: auth.RoleReadonly}

	if !operator.IsOperator() || !operator.CanViewData() {
		t.Fatal("operator must be able to administer and view data")
	}
	if viewer.IsOperator() {
		t.Fatal("viewer must not be treated as an operator")
	}
	if !viewer.CanViewData() {
		t.Fatal("viewer must be able to view data")
	}
	if readonly.IsOperator() || readonly.CanViewData() {
		t.Fatal("readonly must be refused both administration and data viewing")
	}
}
