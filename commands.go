package myq

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DeviceFamily categorizes a device and determines which command endpoint
// it uses. The set is closed; families the library does not recognize map
// to FamilyUnknown and are commanded through the garage-door endpoint.
type DeviceFamily int

// Device families known to the myQ service.
const (
	FamilyGarageDoor DeviceFamily = iota
	FamilyLamp
	FamilyGateway
	FamilyUnknown
)

// String returns the family's wire label.
func (f DeviceFamily) String() string {
	switch f {
	case FamilyGarageDoor:
		return "garagedoor"
	case FamilyLamp:
		return "lamp"
	case FamilyGateway:
		return "gateway"
	default:
		return "unknown"
	}
}

// ParseDeviceFamily maps a wire family label to its DeviceFamily.
func ParseDeviceFamily(family string) DeviceFamily {
	switch strings.ToLower(family) {
	case "garagedoor":
		return FamilyGarageDoor
	case "lamp":
		return FamilyLamp
	case "gateway":
		return FamilyGateway
	default:
		return FamilyUnknown
	}
}

// Commands accepted by the myQ command endpoints.
const (
	CommandDoorOpen  = "open"
	CommandDoorClose = "close"
	CommandLampOn    = "turnon"
	CommandLampOff   = "turnoff"
)

// familyEndpoint describes one command endpoint: its API base and the
// path segment naming the device class.
type familyEndpoint struct {
	base string
	path string
}

// commandEndpoint maps a device family to its command endpoint. The
// default arm is the garage-door entry: families this library has never
// heard of are overwhelmingly garage-door variants.
func (c *Client) commandEndpoint(family DeviceFamily) familyEndpoint {
	switch family {
	case FamilyLamp:
		return familyEndpoint{base: c.endpoints.Lamp, path: "lamps"}
	default:
		return familyEndpoint{base: c.endpoints.GarageDoor, path: "door_openers"}
	}
}

// Execute sends a command to a device. A 403 response is a terminal
// "device unavailable" outcome that leaves the session intact; any other
// failure invalidates the session so the next operation re-authenticates.
func (c *Client) Execute(ctx context.Context, device Device, command string) error {
	if device.SerialNumber == "" {
		return ErrEmptySerial
	}
	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	endpoint := c.commandEndpoint(ParseDeviceFamily(device.DeviceFamily))
	url := fmt.Sprintf("%s/Accounts/%s/%s/%s/%s",
		endpoint.base, device.AccountID, endpoint.path, device.SerialNumber, command)

	if err := c.put(ctx, url); err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			c.logger.Info("device unavailable", "serial", device.SerialNumber, "command", command)
			return err
		}
		c.logger.Error(err, "command failed; invalidating session",
			"serial", device.SerialNumber, "command", command)
		c.invalidate()
		return err
	}

	c.logger.V(1).Info("command executed", "serial", device.SerialNumber, "command", command)
	return nil
}
