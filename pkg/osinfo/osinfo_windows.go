//go:build windows

package osinfo

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/yusufpapurcu/wmi"
)

// Win32_OperatingSystem is the subset of the WMI class the agent reads.
type Win32_OperatingSystem struct {
	Caption     string
	Version     string
	ProductType uint32
}

// ProductType values.
const (
	productWorkstation      = 1
	productDomainController = 2
	productServer           = 3
)

// Query gathers facts from WMI and the kernel. It is called once per run.
func Query() (*Static, error) {
	var systems []Win32_OperatingSystem
	if err := wmi.Query("SELECT Caption, Version, ProductType FROM Win32_OperatingSystem", &systems); err != nil {
		return nil, fmt.Errorf("querying Win32_OperatingSystem: %w", err)
	}
	if len(systems) == 0 {
		return nil, fmt.Errorf("Win32_OperatingSystem returned no rows")
	}
	os := systems[0]

	v, err := goversion.NewVersion(os.Version)
	if err != nil {
		return nil, fmt.Errorf("parsing OS version %q: %w", os.Version, err)
	}

	arch, err := host.KernelArch()
	if err != nil {
		return nil, fmt.Errorf("reading kernel architecture: %w", err)
	}

	return &Static{
		Arch64: is64(arch),
		Server: os.ProductType == productServer || os.ProductType == productDomainController,
		Ver:    v,
	}, nil
}

func is64(arch string) bool {
	switch arch {
	case "x86_64", "amd64", "arm64", "aarch64":
		return true
	}
	return false
}
