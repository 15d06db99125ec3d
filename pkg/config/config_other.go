//go:build !windows

package config

// applyPolicy is a no-op where there is no policy registry.
func applyPolicy(*Configuration) error { return nil }
