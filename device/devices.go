// SPDX-License-Identifier: EPL-2.0

package device

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Environment variables checked when no device is configured explicitly,
// matching the knobs users already set for other tools in this family.
const (
	EnvInputDevice  = "KS_INPUT_DEVICE"
	EnvOutputDevice = "KS_OUTPUT_DEVICE"
)

// ListInputDevices returns every device with at least one input channel.
func ListInputDevices() ([]*portaudio.DeviceInfo, error) {
	return listDevices(true)
}

// ListOutputDevices returns every device with at least one output channel.
func ListOutputDevices() ([]*portaudio.DeviceInfo, error) {
	return listDevices(false)
}

func listDevices(input bool) ([]*portaudio.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	defer portaudio.Terminate()

	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	var out []*portaudio.DeviceInfo
	for _, d := range all {
		if input && d.MaxInputChannels > 0 {
			out = append(out, d)
		}
		if !input && d.MaxOutputChannels > 0 {
			out = append(out, d)
		}
	}
	return out, nil
}

// findDevice resolves a device by (case-insensitive substring) name.
// PortAudio must already be initialized by the caller.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	needle := strings.ToLower(name)
	for _, d := range all {
		if input && d.MaxInputChannels == 0 {
			continue
		}
		if !input && d.MaxOutputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}
