package auth

type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Authorize allows admins everywhere and other callers only on their own resources.
// The caller turns Deny into a 401 response.
func Authorize(id Identity, target string) Decision {
	if id.IsAdmin {
		return Allow
	}
	if id.Authenticated() && id.Username == target {
		return Allow
	}
	return Deny
}
