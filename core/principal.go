package core

// ToPrincipal maps a stored user record into a Principal.
//
// Pure and total: authorities default to an empty set, and the four status
// flags are unconditionally true because the record carries no disablement or
// lockout fields yet. If those fields are ever added, this mapping must start
// consulting them.
func ToPrincipal(record UserRecord) Principal {
	authorities := make([]string, 0, len(record.Authorities)+1)
	authorities = append(authorities, record.Authorities...)
	if record.Role != "" {
		authorities = append(authorities, "role:"+record.Role)
	}
	return Principal{
		Username:              record.Username,
		Authorities:           authorities,
		Enabled:               true,
		AccountNonExpired:     true,
		AccountNonLocked:      true,
		CredentialsNonExpired: true,
	}
}
