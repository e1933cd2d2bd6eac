package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/muurk/esp32aq/internal/device"
)

var sample = device.Readings{CO2: 415, VOC: 42, PM1: 1.2, PM25: 3, PM10: 5.6}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "plain", want: FormatPlain},
		{in: "JSON", want: FormatJSON},
		{in: "styled", want: FormatStyled},
		{in: "yaml", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestReport_Plain(t *testing.T) {
	r := Report{Host: "192.168.1.40", Readings: &sample}

	want := "readings...\n" +
		"co2: 415\n" +
		"pm1.0: 1.2\n" +
		"pm2.5: 3.0\n" +
		"pm10.0: 5.6\n" +
		"voc: 42\n"
	if got := r.Plain(); got != want {
		t.Errorf("Plain() =\n%s\nwant\n%s", got, want)
	}
}

func TestReport_PlainWithInfo(t *testing.T) {
	info := device.DeviceInfo{ChipID: "a4cf12fe", MACAddress: "A4:CF:12:FE:00:01", CoreCount: "2", SiliconRevision: "1", Flash: "4MB"}
	r := Report{Host: "192.168.1.40", Info: &info, Readings: &sample}

	got := r.Plain()
	if !strings.HasPrefix(got, "device info...\nchip id: a4cf12fe\n") {
		t.Errorf("Plain() = %q", got)
	}
	if !strings.Contains(got, "flash: 4MB\nreadings...\n") {
		t.Errorf("device info should precede readings: %q", got)
	}
}

func TestReport_PlainFailure(t *testing.T) {
	err := &device.DeviceError{Message: "request timed out", Cause: device.CauseTimeout}
	r := Report{Host: "192.168.1.40", Err: err}

	want := "failed to get readings: " + err.Error() + "\n"
	if got := r.Plain(); got != want {
		t.Errorf("Plain() = %q, want %q", got, want)
	}
}

func TestFormatConcentration(t *testing.T) {
	tests := map[float64]string{
		3:     "3.0",
		0:     "0.0",
		1.2:   "1.2",
		12.25: "12.25",
	}
	for in, want := range tests {
		if got := FormatConcentration(in); got != want {
			t.Errorf("FormatConcentration(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (Report{Host: "192.168.1.40", Readings: &sample}).Write(&buf, FormatJSON, 80); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	readings, _ := got["readings"].(map[string]interface{})
	if got["host"] != "192.168.1.40" || readings["co2"] != float64(415) || readings["pm2_5"] != float64(3) {
		t.Errorf("got %v", got)
	}
	if _, ok := got["error"]; ok {
		t.Error("error should be omitted on success")
	}
}

func TestReport_JSONFailure(t *testing.T) {
	var buf bytes.Buffer
	r := Report{Host: "sensor.local", Err: &device.DeviceError{Message: "no such host", Cause: device.CauseDNS}}
	if err := r.Write(&buf, FormatJSON, 80); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got jsonReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.Error == "" || len(got.Hint) == 0 || got.Readings != nil {
		t.Errorf("got %+v", got)
	}
}

func TestReport_Styled(t *testing.T) {
	var buf bytes.Buffer
	if err := (Report{Host: "192.168.1.40", Readings: &sample}).Write(&buf, FormatStyled, 80); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"192.168.1.40", "CO2", "415", "ppm", "PM2.5", "µg/m³"} {
		if !strings.Contains(out, want) {
			t.Errorf("styled output missing %q:\n%s", want, out)
		}
	}
}

func TestResult_FailureShowsTroubleshooting(t *testing.T) {
	err := &device.DeviceError{Message: "connection refused", Cause: device.CauseConnectionRefused}
	out := (Report{Host: "192.168.1.40", Err: err}).Result().SetWidth(80).Render()

	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "Troubleshooting:") {
		t.Errorf("failure box = \n%s", out)
	}
}

func TestLevelStyle(t *testing.T) {
	if LevelStyle("co2", 400).GetForeground() != SuccessColor {
		t.Error("400 ppm should be good")
	}
	if LevelStyle("co2", 1000).GetForeground() != WarningColor {
		t.Error("1000 ppm should be moderate")
	}
	if LevelStyle("co2", 2000).GetForeground() != ErrorColor {
		t.Error("2000 ppm should be poor")
	}
	if LevelStyle("pm1", 500).GetForeground() != TextColor {
		t.Error("keys without thresholds should render plain")
	}
}
