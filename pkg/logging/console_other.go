//go:build !windows

package logging

func enableColors() {}
