// Package config loads the esp32aq bridge configuration.
//
// The configuration is a YAML file listing the sensors to poll and how the
// bridge publishes them. The file location follows OS conventions:
//   - Linux: $XDG_CONFIG_HOME/esp32aq/config.yaml or $HOME/.config/esp32aq/config.yaml
//   - macOS: $HOME/.config/esp32aq/config.yaml
//   - Windows: %LOCALAPPDATA%\esp32aq\config.yaml
//
// ESP32AQ_CONFIG or an explicit --config flag overrides the location.
//
// # Example
//
//	version: 1
//	poll_interval: 60s
//	request_timeout: 10s
//	http:
//	  listen: ":8080"
//	  advertise: true
//	mqtt:
//	  broker: tcp://localhost:1883
//	devices:
//	  - host: 192.168.1.40
//	    name: Living Room
//	  - host: esp32-bedroom.local:8080
//	    poll_interval: 2m
//
// # Usage Example
//
//	path, _ := config.ResolvePath(flagPath)
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	for _, d := range cfg.Devices {
//	    interval := cfg.IntervalFor(d)
//	    ...
//	}
//
// # Thread Safety
//
// A loaded *Config is read-only by convention. Save is protected by a mutex
// and writes atomically through a temporary file.
package config
