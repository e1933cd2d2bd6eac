package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// JSON keys served by the device firmware.
const (
	keyChipID          = "chipID"
	keyCoreCount       = "coreCount"
	keySiliconRevision = "siliconRevision"
	keyFlash           = "flash"
	keyMACAddress      = "macAddress"

	keyCO2  = "co2"
	keyVOC  = "voc"
	keyPM1  = "pm1.0"
	keyPM25 = "pm2.5"
	keyPM10 = "pm10.0"
)

// DeviceInfo is the hardware identity reported by the device root endpoint.
// ChipID is the stable key used to identify the device.
type DeviceInfo struct {
	ChipID          string `json:"chip_id" yaml:"chip_id"`
	CoreCount       string `json:"core_count" yaml:"core_count"`
	SiliconRevision string `json:"silicon_revision" yaml:"silicon_revision"`
	Flash           string `json:"flash" yaml:"flash"`
	MACAddress      string `json:"mac_address" yaml:"mac_address"`
}

// Readings is one measurement sample from the /readings endpoint.
type Readings struct {
	CO2  int     `json:"co2"`    // ppm
	VOC  int     `json:"voc"`    // index, unitless
	PM1  float64 `json:"pm1_0"`  // µg/m³
	PM25 float64 `json:"pm2_5"`  // µg/m³
	PM10 float64 `json:"pm10_0"` // µg/m³
}

// ParseDeviceInfo decodes a device root response. All five keys are required.
func ParseDeviceInfo(body []byte) (DeviceInfo, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return DeviceInfo{}, err
	}

	var info DeviceInfo
	targets := []struct {
		key string
		dst *string
	}{
		{keyChipID, &info.ChipID},
		{keyCoreCount, &info.CoreCount},
		{keySiliconRevision, &info.SiliconRevision},
		{keyFlash, &info.Flash},
		{keyMACAddress, &info.MACAddress},
	}
	for _, t := range targets {
		v, err := stringField(fields, t.key)
		if err != nil {
			return DeviceInfo{}, err
		}
		*t.dst = v
	}
	return info, nil
}

// ParseReadings decodes a /readings response. CO2 and VOC accept JSON
// integers, floats (truncated) and numeric strings; the PM values accept
// numbers and numeric strings. Any missing or malformed key fails the parse.
func ParseReadings(body []byte) (Readings, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return Readings{}, err
	}

	var r Readings
	if r.CO2, err = intField(fields, keyCO2); err != nil {
		return Readings{}, err
	}
	if r.VOC, err = intField(fields, keyVOC); err != nil {
		return Readings{}, err
	}
	if r.PM1, err = floatField(fields, keyPM1); err != nil {
		return Readings{}, err
	}
	if r.PM25, err = floatField(fields, keyPM25); err != nil {
		return Readings{}, err
	}
	if r.PM10, err = floatField(fields, keyPM10); err != nil {
		return Readings{}, err
	}
	return r, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode json: expected an object")
	}
	return fields, nil
}

func lookup(fields map[string]any, key string) (any, error) {
	v, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("missing key %q", key)
	}
	if v == nil {
		return nil, fmt.Errorf("key %q is null", key)
	}
	return v, nil
}

func stringField(fields map[string]any, key string) (string, error) {
	v, err := lookup(fields, key)
	if err != nil {
		return "", err
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		// Some firmware builds send coreCount and flash as bare numbers.
		return val.String(), nil
	default:
		return "", fmt.Errorf("key %q: expected string, got %T", key, v)
	}
}

func intField(fields map[string]any, key string) (int, error) {
	v, err := lookup(fields, key)
	if err != nil {
		return 0, err
	}

	var f float64
	switch val := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(val.String(), 10, 64); err == nil {
			f = float64(i)
		} else if f, err = val.Float64(); err != nil {
			return 0, fmt.Errorf("key %q: %s is not an integer", key, val)
		}
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("key %q: %q is not an integer", key, val)
		}
		f = float64(i)
	default:
		return 0, fmt.Errorf("key %q: expected integer, got %T", key, v)
	}

	// readings are int32 on the device; anything wider is garbage
	if math.IsNaN(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("key %q: %v is out of range", key, v)
	}
	return int(f), nil
}

func floatField(fields map[string]any, key string) (float64, error) {
	v, err := lookup(fields, key)
	if err != nil {
		return 0, err
	}
	var raw string
	switch val := v.(type) {
	case json.Number:
		raw = val.String()
	case string:
		raw = strings.TrimSpace(val)
	default:
		return 0, fmt.Errorf("key %q: expected number, got %T", key, v)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("key %q: %q is not a number", key, raw)
	}
	return f, nil
}
