package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urcontrol/urcl-go/pkg/version"
)

func TestRobotTXTRoundTrip(t *testing.T) {
	info := &RobotInfo{
		Model:    "UR5e",
		Serial:   "20215000001",
		Firmware: version.Version{Major: 5, Minor: 9, Bugfix: 4},
		Name:     "cell-3",
	}

	decoded, err := DecodeRobotTXT(EncodeRobotTXT(info))
	require.NoError(t, err)
	assert.Equal(t, info.Model, decoded.Model)
	assert.Equal(t, info.Serial, decoded.Serial)
	assert.Equal(t, info.Firmware, decoded.Firmware)
	assert.Equal(t, info.Name, decoded.Name)
}

func TestRobotTXTOptionalName(t *testing.T) {
	info := &RobotInfo{
		Model:    "UR10e",
		Serial:   "20215000002",
		Firmware: version.Version{Major: 3, Minor: 14, Bugfix: 3},
	}

	txt := EncodeRobotTXT(info)
	assert.NotContains(t, txt, TXTKeyName)

	decoded, err := DecodeRobotTXT(txt)
	require.NoError(t, err)
	assert.Empty(t, decoded.Name)
}

func TestDecodeRobotTXTMissingRequired(t *testing.T) {
	tests := []struct {
		name string
		txt  TXTRecordMap
	}{
		{"missing model", TXTRecordMap{TXTKeySerial: "1", TXTKeyFirmware: "5.9"}},
		{"missing serial", TXTRecordMap{TXTKeyModel: "UR5e", TXTKeyFirmware: "5.9"}},
		{"missing firmware", TXTRecordMap{TXTKeyModel: "UR5e", TXTKeySerial: "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRobotTXT(tt.txt)
			assert.ErrorIs(t, err, ErrMissingRequired)
		})
	}
}

func TestDecodeRobotTXTBadFirmware(t *testing.T) {
	txt := TXTRecordMap{
		TXTKeyModel:    "UR5e",
		TXTKeySerial:   "1",
		TXTKeyFirmware: "not-a-version",
	}
	_, err := DecodeRobotTXT(txt)
	assert.ErrorIs(t, err, ErrInvalidFirmware)
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"model=UR5e", "name=a=b", "bare"})
	assert.Equal(t, "UR5e", txt["model"])
	// Only the first '=' splits key from value.
	assert.Equal(t, "a=b", txt["name"])
	assert.NotContains(t, txt, "bare")
}

func TestMergeAddresses(t *testing.T) {
	merged := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "10.0.0.2"})
	require.Len(t, merged, 2)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, merged)
}
