// pkg/osinfo/osinfo.go - operating system facts the agent branches on.

package osinfo

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
)

// Info answers the platform questions the cleanup and install stages ask.
type Info interface {
	Is64Bit() bool
	IsServer() bool
	Version() *goversion.Version
}

// server2008 covers Windows Server 2008 (6.0) and 2008 R2 (6.1).
var server2008 = goversion.MustConstraints(goversion.NewConstraint(">= 6.0, < 6.2"))

// IsServer2008 reports whether info describes Windows Server 2008 or 2008 R2.
// The bus driver services are left in place on those releases.
func IsServer2008(info Info) bool {
	v := info.Version()
	return info.IsServer() && v != nil && server2008.Check(v)
}

// Static is a fixed set of facts.
type Static struct {
	Arch64 bool
	Server bool
	Ver    *goversion.Version
}

// NewStatic builds Static facts from a dotted version string such as "10.0.17763".
func NewStatic(is64, server bool, ver string) (*Static, error) {
	v, err := goversion.NewVersion(ver)
	if err != nil {
		return nil, fmt.Errorf("parsing OS version %q: %w", ver, err)
	}
	return &Static{Arch64: is64, Server: server, Ver: v}, nil
}

func (s *Static) Is64Bit() bool { return s.Arch64 }
func (s *Static) IsServer() bool { return s.Server }
func (s *Static) Version() *goversion.Version { return s.Ver }

// Facts is a serializable summary for reports.
type Facts struct {
	Arch64   bool   `yaml:"arch64" json:"arch64"`
	Server   bool   `yaml:"server" json:"server"`
	Version  string `yaml:"version" json:"version"`
	Server08 bool   `yaml:"server_2008" json:"server_2008"`
}

// Summarize captures info as Facts.
func Summarize(info Info) Facts {
	f := Facts{Arch64: info.Is64Bit(), Server: info.IsServer(), Server08: IsServer2008(info)}
	if v := info.Version(); v != nil {
		f.Version = v.String()
	}
	return f
}
