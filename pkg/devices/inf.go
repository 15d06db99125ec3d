package devices

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeINF returns the text of an INF file. Files with a UTF-16 byte
// order mark are decoded; anything else is taken as-is.
func decodeINF(raw []byte) (string, error) {
	if bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, raw)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return string(bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})), nil
}

// infNamesHardwareID reports whether an INF's text lists hardwareID,
// with or without a trailing &REV_/&SUBSYS_ qualifier.
func infNamesHardwareID(text, hardwareID string) bool {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		for _, tok := range strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == '=' || r == ' ' || r == '\t' || r == '"'
		}) {
			if strings.EqualFold(tok, hardwareID) {
				return true
			}
			if len(tok) > len(hardwareID) && tok[len(hardwareID)] == '&' && strings.EqualFold(tok[:len(hardwareID)], hardwareID) {
				return true
			}
		}
	}
	return false
}

// FindOEMInfs lists the published oem*.inf names in dir that reference
// hardwareID, sorted.
func FindOEMInfs(dir, hardwareID string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "oem*.inf"))
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		text, err := decodeINF(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}
		if infNamesHardwareID(text, hardwareID) {
			matches = append(matches, filepath.Base(p))
		}
	}
	sort.Strings(matches)
	return matches, nil
}
