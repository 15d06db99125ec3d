//go:build windows

package devices

import (
	"errors"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/sysops"
)

// SetupAPI enumerates devices with the SetupDi functions.
type SetupAPI struct {
	fallback *PnPUtil
}

// NewSetupAPI returns an Enumerator. fallback removes devices the class
// installer refuses to remove when force is requested.
func NewSetupAPI(fallback *PnPUtil) *SetupAPI {
	return &SetupAPI{fallback: fallback}
}

// Open snapshots every device of every class, present or not.
func (s *SetupAPI) Open() (Set, error) {
	devs, err := windows.SetupDiGetClassDevsEx(nil, "", 0, windows.DIGCF_ALLCLASSES, 0, "")
	if err != nil {
		return nil, sysops.Wrap("open device set", "all classes", err)
	}
	return &setupSet{devs: devs, fallback: s.fallback}, nil
}

type setupSet struct {
	devs     windows.DevInfo
	fallback *PnPUtil
	closed   bool
}

func (s *setupSet) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.devs.Close()
}

// matching collects the devices listing hardwareID before any removal so
// the enumeration indices stay stable.
func (s *setupSet) matching(hardwareID string) ([]*windows.DevInfoData, error) {
	var found []*windows.DevInfoData
	for i := 0; ; i++ {
		data, err := s.devs.EnumDeviceInfo(i)
		if errors.Is(err, windows.ERROR_NO_MORE_ITEMS) {
			return found, nil
		}
		if err != nil {
			return nil, err
		}
		prop, err := s.devs.DeviceRegistryProperty(data, windows.SPDRP_HARDWAREID)
		if err != nil {
			continue
		}
		ids, ok := prop.([]string)
		if !ok {
			continue
		}
		for _, id := range ids {
			if strings.EqualFold(id, hardwareID) {
				found = append(found, data)
				break
			}
		}
	}
}

func (s *setupSet) Remove(hardwareID string, force bool) error {
	if s.closed {
		return errors.New("device set is closed")
	}
	found, err := s.matching(hardwareID)
	if err != nil {
		return sysops.Wrap("enumerate devices", hardwareID, err)
	}
	if len(found) == 0 {
		return sysops.NotFoundf("remove device", hardwareID)
	}

	for _, data := range found {
		instanceID, _ := s.devs.DeviceInstanceID(data)
		if err := s.removeOne(data); err != nil {
			if !force || s.fallback == nil || !s.fallback.CanRemoveDevices() || instanceID == "" {
				return sysops.Wrap("remove device", instanceID, err)
			}
			logging.Warn("Class installer refused removal, forcing", "instance", instanceID, "error", err)
			if err := s.fallback.removeDevice(instanceID); err != nil {
				return err
			}
		}
		logging.Info("Removed device", "hardware_id", hardwareID, "instance", instanceID)
	}
	return nil
}

func (s *setupSet) removeOne(data *windows.DevInfoData) error {
	params := windows.RemoveDeviceParams{
		ClassInstallHeader: *windows.MakeClassInstallHeader(windows.DIF_REMOVE),
		Scope:              windows.DI_REMOVEDEVICE_GLOBAL,
	}
	if err := s.devs.SetClassInstallParams(data, &params.ClassInstallHeader, uint32(unsafe.Sizeof(params))); err != nil {
		return err
	}
	return s.devs.CallClassInstaller(windows.DIF_REMOVE, data)
}
