package myq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// deviceRefreshCooldown is the minimum spacing between device list
	// refreshes. The myQ API rate-limits aggressively enough to lock out
	// credentials, so calls inside the window return the previous
	// outcome unchanged.
	deviceRefreshCooldown = 2 * time.Second

	// snapshotMaxAge bounds how old a device snapshot may be before
	// lookups on it fail rather than return possibly-wrong data.
	snapshotMaxAge = 5 * time.Minute
)

// Device represents one myQ device as of the last successful refresh.
// Identity is the serial number, compared case-insensitively.
type Device struct {
	SerialNumber   string         `json:"serial_number"`
	DeviceFamily   string         `json:"device_family"`
	AccountID      string         `json:"account_id"`
	ParentDeviceID string         `json:"parent_device_id,omitempty"`
	Name           string         `json:"name"`
	State          map[string]any `json:"state,omitempty"`
}

// deviceListResponse is the wire shape of a per-account device list.
type deviceListResponse struct {
	Count int      `json:"count"`
	Items []Device `json:"items"`
}

// RefreshDevices replaces the device snapshot with a fresh enumeration of
// every account's inventory. The snapshot is replaced atomically: a
// failure on any single account aborts the whole refresh, keeps the
// previous snapshot, and invalidates the session so the next attempt
// re-authenticates.
//
// Calls within the refresh cooldown return the previous refresh's outcome
// without issuing network traffic.
func (c *Client) RefreshDevices(ctx context.Context) error {
	if time.Since(c.lastRefreshAttempt) < deviceRefreshCooldown {
		return c.lastRefreshErr
	}
	c.lastRefreshAttempt = time.Now()

	if err := c.ensureSession(ctx); err != nil {
		c.lastRefreshErr = err
		return err
	}

	var devices []Device
	for _, account := range c.accounts {
		items, err := c.fetchAccountDevices(ctx, account)
		if err != nil {
			c.logger.Error(err, "device refresh failed; invalidating session", "account", account.ID)
			c.invalidate()
			c.lastRefreshErr = err
			return err
		}
		devices = append(devices, items...)
	}

	c.logDeviceChanges(c.devices, devices)
	c.devices = devices
	c.devicesRefreshedAt = time.Now()
	c.lastRefreshErr = nil
	return nil
}

// fetchAccountDevices enumerates one account's device inventory.
func (c *Client) fetchAccountDevices(ctx context.Context, account Account) ([]Device, error) {
	url := fmt.Sprintf("%s/Accounts/%s/Devices", c.endpoints.Devices, account.ID)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var resp deviceListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("myq: failed to parse device list: %w (body: %s)", err, truncatePreview(body))
	}

	for i := range resp.Items {
		if resp.Items[i].AccountID == "" {
			resp.Items[i].AccountID = account.ID
		}
	}
	return resp.Items, nil
}

// logDeviceChanges reports devices that appeared or disappeared between
// snapshots. Observability only; it never affects the snapshot update.
func (c *Client) logDeviceChanges(previous, current []Device) {
	if len(previous) == 0 && len(current) == 0 {
		return
	}

	known := make(map[string]bool, len(previous))
	for _, d := range previous {
		known[strings.ToLower(d.SerialNumber)] = true
	}
	seen := make(map[string]bool, len(current))
	for _, d := range current {
		serial := strings.ToLower(d.SerialNumber)
		seen[serial] = true
		if len(previous) > 0 && !known[serial] {
			c.logger.Info("discovered device", "name", c.GetDeviceName(d), "serial", d.SerialNumber)
		}
	}
	for _, d := range previous {
		if !seen[strings.ToLower(d.SerialNumber)] {
			c.logger.Info("device removed", "name", c.GetDeviceName(d), "serial", d.SerialNumber)
		}
	}
}

// Devices returns the device snapshot from the last successful refresh.
func (c *Client) Devices() []Device {
	return c.devices
}

// SnapshotTime returns when the device snapshot was last refreshed.
func (c *Client) SnapshotTime() time.Time {
	return c.devicesRefreshedAt
}

// GetDevice looks up a device by serial number, case-insensitively. The
// lookup fails with ErrStaleSnapshot when the snapshot is older than the
// staleness bound, rather than answering from possibly-wrong data.
func (c *Client) GetDevice(serial string) (*Device, error) {
	if serial == "" {
		return nil, ErrEmptySerial
	}
	if c.devicesRefreshedAt.IsZero() || time.Since(c.devicesRefreshedAt) > snapshotMaxAge {
		return nil, ErrStaleSnapshot
	}

	for i := range c.devices {
		if strings.EqualFold(c.devices[i].SerialNumber, serial) {
			device := c.devices[i]
			return &device, nil
		}
	}
	return nil, ErrDeviceNotFound
}

// GetDeviceName returns a display name for a device, synthesizing one
// from the family and serial when the account has not named it.
func (c *Client) GetDeviceName(device Device) string {
	if name := strings.TrimSpace(device.Name); name != "" {
		return name
	}
	serial := device.SerialNumber
	if len(serial) > 4 {
		serial = serial[len(serial)-4:]
	}
	return fmt.Sprintf("%s %s", ParseDeviceFamily(device.DeviceFamily), serial)
}
