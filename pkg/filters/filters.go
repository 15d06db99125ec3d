// Package filters strips PV filter drivers out of device-class filter lists.
package filters

import (
	"fmt"
	"strings"

	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/regedit"
	"github.com/windowsadmins/pvagent/pkg/sysops"
)

// StripFilters returns values without any entry equal (case-insensitively)
// to one of targets. Order of the remaining entries is kept. The bool
// reports whether anything was removed.
func StripFilters(values, targets []string) ([]string, bool) {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if matches(v, targets) {
			continue
		}
		kept = append(kept, v)
	}
	return kept, len(kept) != len(values)
}

func matches(v string, targets []string) bool {
	for _, t := range targets {
		if strings.EqualFold(v, t) {
			return true
		}
	}
	return false
}

// RemoveFromClassFilters edits every class key under classRoot, removing
// targets from each of valueNames. A value is rewritten only when it
// changed; absent values are skipped.
func RemoveFromClassFilters(reg regedit.Registry, classRoot string, targets, valueNames []string) error {
	classes, err := reg.SubKeyNames(classRoot)
	if err != nil {
		return fmt.Errorf("enumerating %s: %w", classRoot, err)
	}

	for _, class := range classes {
		key := regedit.Join(classRoot, class)
		for _, name := range valueNames {
			values, err := reg.GetStrings(key, name)
			if sysops.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}

			kept, changed := StripFilters(values, targets)
			if !changed {
				continue
			}
			if err := reg.SetStrings(key, name, kept); err != nil {
				return err
			}
			logging.Info("Removed filter drivers", "class", class, "value", name, "remaining", strings.Join(kept, ","))
		}
	}
	return nil
}
