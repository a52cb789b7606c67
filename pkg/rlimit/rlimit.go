// Package rlimit lifts the open files limit of a long running server, which
// keeps a data file open per served tree and a connection per client.
package rlimit

// RaiseOpenFilesLimit raises the soft limit on open files to the hard limit
// and returns the new soft limit.  It is zero where limits do not apply.
func RaiseOpenFilesLimit() (int, error) {
	return raiseOpenFilesLimit()
}
