package auth

// RoleResolver maps a principal to its roles and permissions.
//
// The Realm consults the resolver only after the principal has been
// confirmed to hold an enabled account. A deployment with a real
// role store can swap in its own implementation without touching
// the Realm.
type RoleResolver interface {
	Resolve(username string) *AuthzInfo
}

// adminUsername is the single account granted the admin tier by the
// static resolver.
const adminUsername = "admin"

// StaticRoleResolver is the built-in two-tier mapping: the "admin"
// account holds both roles and the full permission set, every other
// account holds the user role with read-only permissions.
type StaticRoleResolver struct{}

// NewStaticRoleResolver creates the built-in resolver.
func NewStaticRoleResolver() *StaticRoleResolver {
	return &StaticRoleResolver{}
}

// Resolve returns a fresh AuthzInfo for the username. Callers may mutate
// the returned slices without affecting other principals.
func (r *StaticRoleResolver) Resolve(username string) *AuthzInfo {
	if username == adminUsername {
		return &AuthzInfo{
			Roles:       []Role{RoleAdmin, RoleUser},
			Permissions: []Permission{PermUserRead, PermUserWrite, PermUserDelete},
		}
	}
	return &AuthzInfo{
		Roles:       []Role{RoleUser},
		Permissions: []Permission{PermUserRead},
	}
}
