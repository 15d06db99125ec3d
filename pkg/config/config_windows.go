//go:build windows

package config

import (
	"errors"
	"strconv"

	"golang.org/x/sys/windows/registry"
)

// applyPolicy overlays values found under PolicyRegistryPath. A missing key
// means no policy is deployed.
func applyPolicy(cfg *Configuration) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, PolicyRegistryPath, registry.READ)
	if errors.Is(err, registry.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer key.Close()

	loadStringFromRegistry(key, "DriverRoot", &cfg.DriverRoot)
	loadStringFromRegistry(key, "StateBackend", &cfg.StateBackend)
	loadStringFromRegistry(key, "StatePath", &cfg.StatePath)
	loadStringFromRegistry(key, "LogDir", &cfg.LogDir)
	loadStringFromRegistry(key, "LogLevel", &cfg.LogLevel)

	loadIntFromRegistry(key, "KeepLogRuns", &cfg.KeepLogRuns)
	loadIntFromRegistry(key, "CleanupPasses", &cfg.CleanupPasses)
	loadIntFromRegistry(key, "MSIAttempts", &cfg.MSIAttempts)
	loadIntFromRegistry(key, "MSIRetryIntervalSeconds", &cfg.MSIRetryIntervalSeconds)
	loadIntFromRegistry(key, "RebootDelaySeconds", &cfg.RebootDelaySeconds)

	loadBoolFromRegistry(key, "Debug", &cfg.Debug)
	loadBoolFromRegistry(key, "ForceDeviceRemoval", &cfg.ForceDeviceRemoval)
	loadBoolFromRegistry(key, "SkipRebootGate", &cfg.SkipRebootGate)
	return nil
}

func loadStringFromRegistry(key registry.Key, valueName string, target *string) {
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		*target = val
	}
}

// loadBoolFromRegistry accepts "true"/"false", "1"/"0" or a DWORD.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
	}
}

func loadIntFromRegistry(key registry.Key, valueName string, target *int) {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			*target = parsed
			return
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = int(val)
	}
}
