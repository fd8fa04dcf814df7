package shared

// Baseline authorities. Authorities are role names carried by an Identity.
const (
	AuthorityAdmin = "ADMIN"
	AuthorityUser  = "USER"
)

// CoreAuthorities lists the roles every deployment starts with.
func CoreAuthorities() []string {
	return []string{
		AuthorityAdmin,
		AuthorityUser,
	}
}
