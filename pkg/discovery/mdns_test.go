package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urcontrol/urcl-go/pkg/version"
)

func TestAdvertiserStartStop(t *testing.T) {
	adv := NewAdvertiser(AdvertiserConfig{})
	defer adv.Stop()

	err := adv.Advertise(&RobotInfo{
		Model:    "UR5e",
		Serial:   "20215000100",
		Firmware: version.Version{Major: 5, Minor: 9, Bugfix: 4},
		Port:     29999,
	})
	require.NoError(t, err)

	// Stopping twice must be harmless.
	adv.Stop()
	adv.Stop()
}

func TestAdvertiserReplacesAnnouncement(t *testing.T) {
	adv := NewAdvertiser(AdvertiserConfig{})
	defer adv.Stop()

	info := &RobotInfo{
		Model:    "UR5e",
		Serial:   "20215000101",
		Firmware: version.Version{Major: 5, Minor: 9, Bugfix: 4},
		Port:     29999,
	}
	require.NoError(t, adv.Advertise(info))

	// A second announcement replaces the first without error.
	info.Name = "cell-7"
	require.NoError(t, adv.Advertise(info))
}

func TestAdvertiseAndFindBySerial(t *testing.T) {
	info := &RobotInfo{
		Model:    "UR10e",
		Serial:   "20215000777",
		Firmware: version.Version{Major: 5, Minor: 12, Bugfix: 1},
		Name:     "browse-test",
		Port:     29999,
	}

	adv := NewAdvertiser(AdvertiserConfig{})
	require.NoError(t, adv.Advertise(info))
	defer adv.Stop()

	// Give mDNS time to propagate.
	time.Sleep(500 * time.Millisecond)

	browser := NewBrowser(BrowserConfig{BrowseTimeout: 5 * time.Second})
	defer browser.Stop()

	svc, err := browser.FindBySerial(context.Background(), info.Serial)
	require.NoError(t, err)

	assert.Equal(t, info.Model, svc.Model)
	assert.Equal(t, info.Serial, svc.Serial)
	assert.Equal(t, info.Firmware, svc.Firmware)
	assert.Equal(t, info.Name, svc.Name)
	assert.NotEmpty(t, svc.Addresses)
}
