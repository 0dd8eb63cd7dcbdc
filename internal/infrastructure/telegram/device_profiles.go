package telegram

import (
	"math/rand"

	"github.com/mkazarin/accountgate/internal/domain"
)

// deviceProfiles are the client fingerprints rotated across jobs so no single
// fixed fingerprint is shared by every outbound connection.
var deviceProfiles = []domain.DeviceProfile{
	{DeviceModel: "Desktop", SystemVersion: "Windows 10", AppVersion: "4.8.1 x64"},
	{DeviceModel: "PC 64bit", SystemVersion: "Windows 11", AppVersion: "4.9.9 x64"},
	{DeviceModel: "Laptop", SystemVersion: "Windows 10", AppVersion: "4.10.2 x64"},
}

func randomDeviceProfile() domain.DeviceProfile {
	return deviceProfiles[rand.Intn(len(deviceProfiles))]
}
