// Package myq provides a Go client library for the Chamberlain/Liftmaster
// myQ cloud service.
//
// The library handles the full OAuth2 + PKCE login sequence against the myQ
// identity service, keeps the resulting access token fresh, fails over
// between the service's geographic regions on transient errors, and exposes
// a polled snapshot of the account's device inventory plus a command
// execution call.
//
// # Authentication
//
// myQ has no official API; authentication uses the same authorization-code
// flow the mobile apps use, driven by the account's email and password:
//
//	client := myq.NewClient()
//	if err := client.Login(ctx, "you@example.com", "password"); err != nil {
//	    log.Fatal(err)
//	}
//
// After a successful login the client refreshes its access token ahead of
// expiry. Call StartTokenRefresh to have that happen on a background timer,
// and Close to stop it.
//
// # Devices
//
// Device state is polled, not pushed:
//
//	if err := client.RefreshDevices(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	for _, device := range client.Devices() {
//	    fmt.Printf("%s (%s)\n", client.GetDeviceName(device), device.SerialNumber)
//	}
//
// Execute a command:
//
//	device, err := client.GetDevice("GW0123456789")
//	if err == nil {
//	    err = client.Execute(ctx, device, myq.CommandDoorOpen)
//	}
//
// # Concurrency
//
// A Client tracks one logical session and is not safe for concurrent use.
// Drive one login, refresh, or command operation to completion before
// starting another, or give each goroutine its own Client. The background
// token refresh started by StartTokenRefresh is the one exception; a manual
// operation racing it is benign (the later completion wins the stored
// token).
package myq
