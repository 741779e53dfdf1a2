//go:build unix

package privilege

import "golang.org/x/sys/unix"

func isAdmin() bool { return unix.Geteuid() == 0 }
