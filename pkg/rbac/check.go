package rbac

// HasPerm reports whether role holds perm. A nil catalog, an empty role or a
// role the catalog does not declare holds nothing.
func (c *Catalog) HasPerm(role Role, perm Permission) bool {
	if c == nil || role == "" {
		return false
	}
	set, ok := c.roles[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// CanAny reports whether role holds at least one of perms. No perms means no
// access.
func (c *Catalog) CanAny(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if c.HasPerm(role, p) {
			return true
		}
	}
	return false
}

// CanAll reports whether role holds every one of perms. No perms means no
// access.
func (c *Catalog) CanAll(role Role, perms ...Permission) bool {
	if len(perms) == 0 {
		return false
	}
	for _, p := range perms {
		if !c.HasPerm(role, p) {
			return false
		}
	}
	return true
}
