// Package discovery finds robot controllers on the local network via
// mDNS. Robots (or their simulators) advertise a service carrying
// identity metadata in TXT records; clients browse for it instead of
// hardcoding addresses.
package discovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/urcontrol/urcl-go/pkg/version"
)

// Service constants.
const (
	// ServiceType is the mDNS service type advertised by controllers.
	ServiceType = "_urcl._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the advertised port, the supervisory endpoint.
	DefaultPort = 29999

	// BrowseTimeout is the default timeout for browse operations.
	BrowseTimeout = 10 * time.Second
)

// TXT record keys.
const (
	// TXTKeyModel is the robot model, e.g. "UR5e".
	TXTKeyModel = "model"

	// TXTKeySerial is the robot serial number.
	TXTKeySerial = "serial"

	// TXTKeyFirmware is the controller firmware version.
	TXTKeyFirmware = "fw"

	// TXTKeyName is the operator-assigned robot name. Optional.
	TXTKeyName = "name"
)

// TXT record errors.
var (
	ErrMissingRequired = errors.New("missing required TXT record")
	ErrInvalidFirmware = errors.New("invalid firmware version in TXT record")
)

// RobotInfo is the identity a controller advertises.
type RobotInfo struct {
	// Model is the robot model.
	Model string

	// Serial is the robot serial number.
	Serial string

	// Firmware is the controller firmware version.
	Firmware version.Version

	// Name is the operator-assigned robot name. Optional.
	Name string

	// Port is the advertised port. Zero means DefaultPort.
	Port uint16
}

// RobotService is a discovered robot controller.
type RobotService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the mDNS hostname.
	Host string

	// Port is the advertised port.
	Port uint16

	// Addresses are the resolved IP addresses.
	Addresses []string

	// Model is the robot model.
	Model string

	// Serial is the robot serial number.
	Serial string

	// Firmware is the controller firmware version.
	Firmware version.Version

	// Name is the operator-assigned robot name.
	Name string
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeRobotTXT creates TXT records for robot advertisement.
func EncodeRobotTXT(info *RobotInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyModel:    info.Model,
		TXTKeySerial:   info.Serial,
		TXTKeyFirmware: info.Firmware.String(),
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	return txt
}

// DecodeRobotTXT parses TXT records from a robot advertisement.
func DecodeRobotTXT(txt TXTRecordMap) (*RobotInfo, error) {
	info := &RobotInfo{}

	var ok bool
	if info.Model, ok = txt[TXTKeyModel]; !ok {
		return nil, errMissing(TXTKeyModel)
	}
	if info.Serial, ok = txt[TXTKeySerial]; !ok {
		return nil, errMissing(TXTKeySerial)
	}

	fwStr, ok := txt[TXTKeyFirmware]
	if !ok {
		return nil, errMissing(TXTKeyFirmware)
	}
	fw, err := version.Parse(fwStr)
	if err != nil {
		return nil, ErrInvalidFirmware
	}
	info.Firmware = fw

	info.Name = txt[TXTKeyName]
	return info, nil
}

func errMissing(key string) error {
	return fmt.Errorf("%w: %s", ErrMissingRequired, key)
}

// StringsToTXTRecords parses "key=value" strings into a map.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(strs))
	for _, s := range strs {
		for i := 0; i < len(s); i++ {
			if s[i] == '=' {
				txt[s[:i]] = s[i+1:]
				break
			}
		}
	}
	return txt
}

// TXTRecordsToStrings converts a map into "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	strs := make([]string, 0, len(txt))
	for k, v := range txt {
		strs = append(strs, k+"="+v)
	}
	return strs
}
