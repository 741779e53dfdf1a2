//go:build windows

package privilege

import "golang.org/x/sys/windows"

func isAdmin() bool {
	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	if windows.GetCurrentProcessToken().IsElevated() {
		return true
	}
	// A zero token checks the calling thread's effective identity.
	member, err := windows.Token(0).IsMember(sid)
	return err == nil && member
}
