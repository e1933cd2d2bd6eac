// Package hub owns the coordinators of the bridge, one per device, keyed by
// the device chip ID. The bridge creates a Hub at startup, passes it to the
// presentation adapters and closes it on shutdown.
package hub
