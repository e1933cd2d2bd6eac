// Package server exposes the bridge over HTTP.
//
// Routes:
//
//	GET  /healthz                      bridge liveness and device counts
//	GET  /api/devices                  every registered device with its latest readings
//	GET  /api/devices/{id}             one device; 503 until it has data
//	GET  /api/devices/{id}/entities    the five sensor entities of a device
//	POST /api/devices/{id}/refresh     poll a device now
//	GET  /ws                           websocket stream of device updates
//	GET  /metrics                      Prometheus metrics, when configured
//
// Device ids are chip ids. Errors are JSON documents with an "error" field
// and, for device failures, a "hint" list of troubleshooting steps.
//
// Websocket subscribers first receive the current state of every device,
// then one message per refresh attempt of any device.
package server
