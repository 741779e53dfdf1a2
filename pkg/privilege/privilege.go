// Package privilege checks whether the process may install system-wide
// modules.
package privilege

// IsAdmin reports whether the current process runs with administrator
// rights: root on unix, an elevated token on Windows.
func IsAdmin() bool { return isAdmin() }
