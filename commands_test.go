package myq

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestParseDeviceFamily(t *testing.T) {
	tests := []struct {
		in   string
		want DeviceFamily
	}{
		{"garagedoor", FamilyGarageDoor},
		{"GarageDoor", FamilyGarageDoor},
		{"lamp", FamilyLamp},
		{"gateway", FamilyGateway},
		{"commercialdoor", FamilyUnknown},
		{"", FamilyUnknown},
	}
	for _, tt := range tests {
		if got := ParseDeviceFamily(tt.in); got != tt.want {
			t.Errorf("ParseDeviceFamily(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExecute(t *testing.T) {
	login := func(t *testing.T, s *fakeService) *Client {
		t.Helper()
		c := newTestClient(s)
		if err := c.Login(context.Background(), testEmail, testPassword); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return c
	}

	t.Run("garage door routed to the door opener endpoint", func(t *testing.T) {
		s := newFakeService(t)
		c := login(t, s)

		device := Device{SerialNumber: "GW0123456789", DeviceFamily: "garagedoor", AccountID: "acct-1"}
		if err := c.Execute(context.Background(), device, CommandDoorOpen); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(s.commands) != 1 {
			t.Fatalf("got %d commands, want 1", len(s.commands))
		}
		want := "/gdo/api/v5.2/Accounts/acct-1/door_openers/GW0123456789/open"
		if s.commands[0] != want {
			t.Errorf("command path = %q, want %q", s.commands[0], want)
		}
	})

	t.Run("lamp routed to the lamp endpoint", func(t *testing.T) {
		s := newFakeService(t)
		c := login(t, s)

		device := Device{SerialNumber: "LM0000000001", DeviceFamily: "lamp", AccountID: "acct-1"}
		if err := c.Execute(context.Background(), device, CommandLampOn); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "/lamp/api/v5.2/Accounts/acct-1/lamps/LM0000000001/turnon"
		if s.commands[0] != want {
			t.Errorf("command path = %q, want %q", s.commands[0], want)
		}
	})

	t.Run("unrecognized family defaults to the door opener endpoint", func(t *testing.T) {
		s := newFakeService(t)
		c := login(t, s)

		device := Device{SerialNumber: "XX0000000002", DeviceFamily: "commercialdoor", AccountID: "acct-1"}
		if err := c.Execute(context.Background(), device, CommandDoorClose); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(s.commands[0], "/gdo/") || !strings.Contains(s.commands[0], "/door_openers/") {
			t.Errorf("command path = %q, want door opener routing", s.commands[0])
		}
	})

	t.Run("403 is terminal and keeps the session", func(t *testing.T) {
		s := newFakeService(t)
		c := login(t, s)
		s.commandStatus = http.StatusForbidden

		device := Device{SerialNumber: "GW0123456789", DeviceFamily: "garagedoor", AccountID: "acct-1"}
		err := c.Execute(context.Background(), device, CommandDoorOpen)
		if !IsDeviceUnavailable(err) {
			t.Fatalf("error = %v, want ErrDeviceUnavailable", err)
		}
		if len(s.commands) != 1 {
			t.Errorf("got %d command attempts, want 1 (403 never retried)", len(s.commands))
		}
		if !c.hasSession() {
			t.Error("403 must not invalidate the session")
		}
		if c.LastStatus() != http.StatusForbidden {
			t.Errorf("LastStatus() = %d, want 403", c.LastStatus())
		}
	})

	t.Run("server failure invalidates the session", func(t *testing.T) {
		s := newFakeService(t)
		c := login(t, s)
		s.commandStatus = http.StatusBadGateway

		device := Device{SerialNumber: "GW0123456789", DeviceFamily: "garagedoor", AccountID: "acct-1"}
		if err := c.Execute(context.Background(), device, CommandDoorOpen); err == nil {
			t.Fatal("expected error")
		}
		if c.tokens != nil {
			t.Error("session should be invalidated after a non-403 command failure")
		}
	})

	t.Run("empty serial rejected", func(t *testing.T) {
		s := newFakeService(t)
		c := login(t, s)

		if err := c.Execute(context.Background(), Device{}, CommandDoorOpen); err != ErrEmptySerial {
			t.Fatalf("error = %v, want ErrEmptySerial", err)
		}
	})
}
