package auth

import "testing"

func TestStaticRoleResolver_Admin(t *testing.T) {
	info := NewStaticRoleResolver().Resolve("admin")

	if !info.HasRole(RoleAdmin) {
		t.Error("admin should have the admin role")
	}
	if !info.HasRole(RoleUser) {
		t.Error("admin should also have the user role")
	}
	for _, p := range []Permission{PermUserRead, PermUserWrite, PermUserDelete} {
		if !info.HasPermission(p) {
			t.Errorf("admin should have permission %q", p)
		}
	}
}

func TestStaticRoleResolver_RegularUser(t *testing.T) {
	info := NewStaticRoleResolver().Resolve("alice")

	if info.HasRole(RoleAdmin) {
		t.Error("regular user should not have the admin role")
	}
	if !info.HasRole(RoleUser) {
		t.Error("regular user should have the user role")
	}
	if !info.HasPermission(PermUserRead) {
		t.Error("regular user should have user:read")
	}
	if info.HasPermission(PermUserDelete) {
		t.Error("regular user should not have user:delete")
	}
}

func TestStaticRoleResolver_FreshCopies(t *testing.T) {
	r := NewStaticRoleResolver()

	first := r.Resolve("alice")
	first.Roles[0] = Role("mangled")

	second := r.Resolve("alice")
	if second.Roles[0] != RoleUser {
		t.Error("Resolve() should return fresh slices, not shared state")
	}
}

func TestAuthzInfo_NilReceiver(t *testing.T) {
	var info *AuthzInfo

	if info.HasRole(RoleUser) {
		t.Error("nil AuthzInfo should have no roles")
	}
	if info.HasPermission(PermUserRead) {
		t.Error("nil AuthzInfo should have no permissions")
	}
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		want     bool
	}{
		{"admin", true},
		{"disabled_user", true},
		{"a.b-c_d", true},
		{"ab", true},
		{"a", false},
		{"", false},
		{"has space", false},
		{"péter", false},
		{string(make([]byte, 60)), false},
	}

	for _, tt := range tests {
		t.Run("username "+tt.username, func(t *testing.T) {
			if got := IsValidUsername(tt.username); got != tt.want {
				t.Errorf("IsValidUsername(%q) = %v, want %v", tt.username, got, tt.want)
			}
		})
	}
}
