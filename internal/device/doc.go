// Package device provides an HTTP client for ESP32 air quality sensors.
//
// The sensor firmware serves two JSON documents over plain HTTP:
//
//	GET /          {"chipID": "...", "coreCount": "...", "siliconRevision": "...",
//	                "flash": "...", "macAddress": "..."}
//	GET /readings  {"co2": 415, "voc": 42, "pm1.0": 1.2, "pm2.5": 3.4, "pm10.0": 5.6}
//
// # Usage Example
//
//	client := device.NewClient("192.168.1.40")
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	info, _ := client.DeviceInfo()
//
//	readings, err := client.Readings(ctx)
//	if err != nil {
//	    return err
//	}
//
// # Connection State
//
// Connect fetches the device info once and caches it; calling it again while
// connected performs no I/O. DeviceInfo fails until Connect has succeeded.
// Readings never depends on, or changes, the connection state.
//
// # Error Handling
//
// Every failure (connection refused, timeout, DNS, non-2xx status, missing or
// malformed JSON key) is returned as a *DeviceError. The client never retries;
// each request is bounded by a total timeout (DefaultTimeout unless
// overridden with WithTimeout).
//
// # Thread Safety
//
// Client instances are safe for concurrent use.
package device
