// Package devices removes PV device nodes and their driver packages.
package devices

// Enumerator opens a snapshot of the machine's device nodes.
type Enumerator interface {
	Open() (Set, error)
}

// Set is an open device snapshot. It must be closed on every path.
type Set interface {
	// Remove uninstalls every device node carrying hardwareID. With no
	// matching node it returns a sysops NotFound error. force falls back to
	// pnputil when the class installer refuses.
	Remove(hardwareID string, force bool) error
	Close() error
}

// PackageManager manages driver packages in the driver store.
type PackageManager interface {
	// UninstallByHardwareID deletes every third-party package whose INF
	// names hardwareID. NotFound when none does.
	UninstallByHardwareID(hardwareID string) error
	// Install stages the INF and installs it on matching devices.
	Install(infPath string) error
}
