//go:build windows

package facts

import (
	"fmt"
	"strings"

	"github.com/yusufpapurcu/wmi"
)

// WMI structures for querying system information
type Win32_OperatingSystem struct {
	Caption     string `wmi:"Caption"`
	Version     string `wmi:"Version"`
	BuildNumber string `wmi:"BuildNumber"`
}

type Win32_ComputerSystem struct {
	Domain       string `wmi:"Domain"`
	PartOfDomain bool   `wmi:"PartOfDomain"`
	Model        string `wmi:"Model"`
	Manufacturer string `wmi:"Manufacturer"`
}

func collectPlatform(f *SystemFacts) {
	var systems []Win32_OperatingSystem
	if err := wmi.Query("SELECT Caption, Version, BuildNumber FROM Win32_OperatingSystem", &systems); err == nil && len(systems) > 0 {
		osInfo := systems[0]
		f.OSVersion = strings.TrimSpace(fmt.Sprintf("%s %s", osInfo.Caption, osInfo.Version))
	}

	var computers []Win32_ComputerSystem
	if err := wmi.Query("SELECT Domain, PartOfDomain, Model, Manufacturer FROM Win32_ComputerSystem", &computers); err == nil && len(computers) > 0 {
		cs := computers[0]
		f.MachineModel = strings.TrimSpace(cs.Manufacturer + " " + cs.Model)
		if cs.PartOfDomain {
			f.Domain = cs.Domain
		}
	}
}
