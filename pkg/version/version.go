// pkg/version/version.go - build information for the agent, set through -ldflags.

package version

import (
	"fmt"
	"io"
	"runtime"
)

// These values are private which ensures they can only be set with the build flags.
var (
	version   = "dev"
	branch    = "unknown"
	revision  = "unknown"
	buildDate = "unknown"
	appName   = "pvagent"
)

// Info is a structure with version build information about the current application.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Branch    string `json:"branch" yaml:"branch"`
	Revision  string `json:"revision" yaml:"revision"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	BuildDate string `json:"build_date" yaml:"build_date"`
}

// Version returns a structure with the current version information.
func Version() Info {
	return Info{
		Version:   version,
		Branch:    branch,
		Revision:  revision,
		GoVersion: runtime.Version(),
		BuildDate: buildDate,
	}
}

// AppName is the binary name used in banners and log sessions.
func AppName() string { return appName }

// Fprint writes the application name and version string.
func Fprint(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", appName, version)
}

// FprintFull writes the application name and detailed build information.
func FprintFull(w io.Writer) {
	v := Version()
	fmt.Fprintf(w, "%s %s\n", appName, v.Version)
	fmt.Fprintf(w, "  branch: \t%s\n", v.Branch)
	fmt.Fprintf(w, "  revision: \t%s\n", v.Revision)
	fmt.Fprintf(w, "  build date: \t%s\n", v.BuildDate)
	fmt.Fprintf(w, "  go version: \t%s\n", v.GoVersion)
}
