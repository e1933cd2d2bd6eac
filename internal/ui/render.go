package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/muurk/esp32aq/internal/device"
	"github.com/muurk/esp32aq/internal/sensor"
)

// Format selects how a Report is written
type Format string

const (
	FormatPlain  Format = "plain"
	FormatStyled Format = "styled"
	FormatJSON   Format = "json"
)

// Formats lists the accepted --format values
var Formats = []Format{FormatPlain, FormatStyled, FormatJSON}

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown format %q (want %s)", s, strings.Join(names, ", "))
}

// Report is the outcome of one diagnostic query
type Report struct {
	Host     string
	Info     *device.DeviceInfo // written only when set
	Readings *device.Readings
	Err      error
}

// Write renders r to w in the given format. Width applies to FormatStyled.
func (r Report) Write(w io.Writer, format Format, width int) error {
	switch format {
	case FormatJSON:
		return r.writeJSON(w)
	case FormatStyled:
		_, err := fmt.Fprintln(w, r.Result().SetWidth(width).Render())
		return err
	default:
		_, err := io.WriteString(w, r.Plain())
		return err
	}
}

// Plain returns the line oriented report:
//
//	readings...
//	co2: 415
//	pm1.0: 1.2
//	pm2.5: 3.4
//	pm10.0: 5.6
//	voc: 42
func (r Report) Plain() string {
	var b strings.Builder
	if r.Err != nil {
		fmt.Fprintf(&b, "failed to get readings: %v\n", r.Err)
		return b.String()
	}

	if r.Info != nil {
		b.WriteString("device info...\n")
		fmt.Fprintf(&b, "chip id: %s\n", r.Info.ChipID)
		fmt.Fprintf(&b, "mac address: %s\n", r.Info.MACAddress)
		fmt.Fprintf(&b, "core count: %s\n", r.Info.CoreCount)
		fmt.Fprintf(&b, "silicon revision: %s\n", r.Info.SiliconRevision)
		fmt.Fprintf(&b, "flash: %s\n", r.Info.Flash)
	}
	if r.Readings != nil {
		rd := r.Readings
		b.WriteString("readings...\n")
		fmt.Fprintf(&b, "co2: %d\n", rd.CO2)
		fmt.Fprintf(&b, "pm1.0: %s\n", FormatConcentration(rd.PM1))
		fmt.Fprintf(&b, "pm2.5: %s\n", FormatConcentration(rd.PM25))
		fmt.Fprintf(&b, "pm10.0: %s\n", FormatConcentration(rd.PM10))
		fmt.Fprintf(&b, "voc: %d\n", rd.VOC)
	}
	return b.String()
}

// FormatConcentration prints a particulate value with at least one decimal,
// so whole numbers read "3.0" rather than "3".
func FormatConcentration(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// Result converts r into a styled result box
func (r Report) Result() *Result {
	if r.Err != nil {
		return NewFailureResult("Could not read "+r.Host, r.Err, device.TroubleshootingHint(r.Err))
	}

	res := NewSuccessResult("Air quality at " + r.Host)
	if r.Info != nil {
		res.AddDetail("Chip ID", r.Info.ChipID).
			AddDetail("MAC address", r.Info.MACAddress).
			AddDetail("Cores", r.Info.CoreCount).
			AddDetail("Silicon rev", r.Info.SiliconRevision).
			AddDetail("Flash", r.Info.Flash)
	}
	if r.Readings != nil {
		for _, d := range sensor.Descriptions {
			v := d.Value(*r.Readings)
			res.AddDetail(d.Label, LevelStyle(d.Key, v).Render(sensor.FormatValue(v))+" "+UnitStyle.Render(d.Unit))
		}
	}
	return res
}

type jsonReport struct {
	Host     string             `json:"host"`
	Info     *device.DeviceInfo `json:"info,omitempty"`
	Readings *device.Readings   `json:"readings,omitempty"`
	Error    string             `json:"error,omitempty"`
	Hint     []string           `json:"hint,omitempty"`
}

func (r Report) writeJSON(w io.Writer) error {
	out := jsonReport{Host: r.Host, Info: r.Info, Readings: r.Readings}
	if r.Err != nil {
		out.Error = r.Err.Error()
		out.Hint = device.TroubleshootingHint(r.Err)
		out.Info, out.Readings = nil, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
