//go:build windows

package msi

import (
	"fmt"
	"runtime"
	"strings"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// COMResolver looks products up through the WindowsInstaller.Installer
// automation object.
type COMResolver struct{}

// NewCOMResolver returns a Resolver backed by Windows Installer.
func NewCOMResolver() *COMResolver { return &COMResolver{} }

// ProductCode returns the code of the first installed product whose
// ProductName equals displayName, ignoring case.
func (r *COMResolver) ProductCode(displayName string) (string, error) {
	var code string
	err := withInstaller(func(inst *ole.IDispatch) error {
		productsVar, err := oleutil.GetProperty(inst, "Products")
		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}
		defer productsVar.Clear()

		products := productsVar.ToIDispatch()
		if products == nil {
			return fmt.Errorf("listing products: nil collection")
		}

		countVar, err := oleutil.GetProperty(products, "Count")
		if err != nil {
			return fmt.Errorf("counting products: %w", err)
		}
		count := int(countVar.Val)
		countVar.Clear()

		for i := 0; i < count; i++ {
			itemVar, err := oleutil.GetProperty(products, "Item", i)
			if err != nil {
				continue
			}
			candidate := itemVar.ToString()
			itemVar.Clear()

			nameVar, err := oleutil.GetProperty(inst, "ProductInfo", candidate, "ProductName")
			if err != nil {
				continue
			}
			name := nameVar.ToString()
			nameVar.Clear()

			if strings.EqualFold(name, displayName) {
				code = candidate
				return nil
			}
		}
		return nil
	})
	return code, err
}

func withInstaller(action func(inst *ole.IDispatch) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		return fmt.Errorf("failed to initialize COM: %w", err)
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WindowsInstaller.Installer")
	if err != nil {
		return fmt.Errorf("failed to create installer object: %w", err)
	}
	defer unknown.Release()

	inst, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("failed to query installer object: %w", err)
	}
	defer inst.Release()

	return action(inst)
}
