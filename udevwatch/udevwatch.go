// Package udevwatch discovers and hotplug-watches the USB/serial
// sub-GHz dongle the radio driver talks to. It generalizes the
// teacher's src/cm108.go device inventory (which walks libudev via
// direct cgo calls to find a USB sound-card-class PTT interface) to
// this decoder's RF dongle, using the pure-Go
// github.com/jochenvg/go-udev wrapper instead of hand-written cgo:
// the teacher's cgo bridge exists because CM108 enumeration predates
// a usable Go udev binding, not because cgo is a requirement of the
// approach itself.
//
// The go-udev call shapes below (Enumerate/Monitor construction,
// property and devnode accessors) follow that library's documented
// API as of its last tagged release; no retrieved example repo uses
// it directly, so treat this file the way package radio's Hamlib
// driver is flagged: written from the library's published API, not
// verified against a working call site in this pack.
package udevwatch

import (
	"context"
	"fmt"

	"github.com/jochenvg/go-udev"
)

// Device describes one candidate dongle found on the USB/serial bus.
type Device struct {
	DevNode  string
	VendorID string
	ProductID string
	Serial   string
}

// subsystems this decoder's dongles show up under: a CDC-ACM serial
// adapter, or a raw HID interface for some SDR/RF dongles.
var subsystems = []string{"tty", "hidraw"}

// Enumerate lists every currently attached device across the watched
// subsystems, mirroring the teacher's cm108_inventory two-pass scan
// (sound, then hidraw) generalized to this decoder's device classes.
func Enumerate() ([]Device, error) {
	u := udev.Udev{}
	var out []Device

	for _, subsystem := range subsystems {
		enum := u.NewEnumerateFromUdev()
		if err := enum.AddMatchSubsystem(subsystem); err != nil {
			return nil, fmt.Errorf("udevwatch: match subsystem %s: %w", subsystem, err)
		}
		devices, err := enum.Devices()
		if err != nil {
			return nil, fmt.Errorf("udevwatch: enumerate %s: %w", subsystem, err)
		}
		for _, d := range devices {
			node := d.Devnode()
			if node == "" {
				continue
			}
			out = append(out, Device{
				DevNode:   node,
				VendorID:  d.PropertyValue("ID_VENDOR_ID"),
				ProductID: d.PropertyValue("ID_MODEL_ID"),
				Serial:    d.PropertyValue("ID_SERIAL_SHORT"),
			})
		}
	}
	return out, nil
}

// Watch streams hotplug add/remove events for the watched subsystems
// until ctx is canceled. onEvent is called for every event with
// action "add" or "remove" and the affected device's node path.
func Watch(ctx context.Context, onEvent func(action, devNode string)) error {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	for _, subsystem := range subsystems {
		if err := mon.FilterAddMatchSubsystem(subsystem); err != nil {
			return fmt.Errorf("udevwatch: filter subsystem %s: %w", subsystem, err)
		}
	}

	deviceCh, errCh, err := mon.DeviceChan(ctx)
	if err != nil {
		return fmt.Errorf("udevwatch: start monitor: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("udevwatch: monitor: %w", err)
			}
		case d, ok := <-deviceCh:
			if !ok {
				return nil
			}
			onEvent(d.Action(), d.Devnode())
		}
	}
}
