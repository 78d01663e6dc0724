//go:build !linux

package inject

func checkSession() error { return nil }
