package device

import (
	"strings"
	"testing"
)

func TestParseReadings_Coercion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Readings
	}{
		{
			name: "numeric string co2",
			body: `{"co2":"415","voc":42,"pm1.0":1.2,"pm2.5":3.4,"pm10.0":5.6}`,
			want: Readings{CO2: 415, VOC: 42, PM1: 1.2, PM25: 3.4, PM10: 5.6},
		},
		{
			name: "floats with zero fraction",
			body: `{"co2":415.0,"voc":42.0,"pm1.0":1,"pm2.5":3,"pm10.0":5}`,
			want: Readings{CO2: 415, VOC: 42, PM1: 1, PM25: 3, PM10: 5},
		},
		{
			name: "string pm values",
			body: `{"co2":600,"voc":"100","pm1.0":"0.5","pm2.5":" 7.25 ","pm10.0":"12"}`,
			want: Readings{CO2: 600, VOC: 100, PM1: 0.5, PM25: 7.25, PM10: 12},
		},
		{
			name: "fractional co2 truncates",
			body: `{"co2":415.9,"voc":1,"pm1.0":0,"pm2.5":0,"pm10.0":0}`,
			want: Readings{CO2: 415, VOC: 1},
		},
		{
			name: "extra keys ignored",
			body: `{"co2":400,"voc":10,"pm1.0":1,"pm2.5":2,"pm10.0":3,"temperature":21.5}`,
			want: Readings{CO2: 400, VOC: 10, PM1: 1, PM25: 2, PM10: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReadings([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseReadings() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseReadings() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseReadings_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing pm10", `{"co2":415,"voc":42,"pm1.0":1.2,"pm2.5":3.4}`, `missing key "pm10.0"`},
		{"null voc", `{"co2":415,"voc":null,"pm1.0":1.2,"pm2.5":3.4,"pm10.0":5.6}`, `key "voc" is null`},
		{"non numeric co2", `{"co2":"high","voc":42,"pm1.0":1.2,"pm2.5":3.4,"pm10.0":5.6}`, `not an integer`},
		{"decimal string co2", `{"co2":"415.5","voc":42,"pm1.0":1.2,"pm2.5":3.4,"pm10.0":5.6}`, `not an integer`},
		{"co2 integer beyond int32", `{"co2":5000000000,"voc":42,"pm1.0":1.2,"pm2.5":3.4,"pm10.0":5.6}`, `out of range`},
		{"co2 string beyond int32", `{"co2":"5000000000","voc":42,"pm1.0":1.2,"pm2.5":3.4,"pm10.0":5.6}`, `out of range`},
		{"co2 float beyond int32", `{"co2":5e9,"voc":42,"pm1.0":1.2,"pm2.5":3.4,"pm10.0":5.6}`, `out of range`},
		{"voc below int32", `{"co2":415,"voc":-3000000000,"pm1.0":1.2,"pm2.5":3.4,"pm10.0":5.6}`, `out of range`},
		{"bool pm", `{"co2":415,"voc":42,"pm1.0":true,"pm2.5":3.4,"pm10.0":5.6}`, `expected number`},
		{"array body", `[1,2,3]`, `decode json`},
		{"null body", `null`, `expected an object`},
		{"empty body", ``, `decode json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReadings([]byte(tt.body))
			if err == nil {
				t.Fatal("ParseReadings() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseReadings() error = %q, should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDeviceInfo(t *testing.T) {
	info, err := ParseDeviceInfo([]byte(`{"chipID":"a4cf12fe","coreCount":2,"siliconRevision":"1","flash":"4MB","macAddress":"A4:CF:12:FE:00:01"}`))
	if err != nil {
		t.Fatalf("ParseDeviceInfo() error = %v", err)
	}

	if info.ChipID != "a4cf12fe" {
		t.Errorf("ChipID = %s, want a4cf12fe", info.ChipID)
	}
	if info.CoreCount != "2" {
		t.Errorf("CoreCount = %s, want 2", info.CoreCount)
	}
	if info.MACAddress != "A4:CF:12:FE:00:01" {
		t.Errorf("MACAddress = %s, want A4:CF:12:FE:00:01", info.MACAddress)
	}
}

func TestParseDeviceInfo_Rejects(t *testing.T) {
	bodies := map[string]string{
		"missing chip id": `{"coreCount":"2","siliconRevision":"1","flash":"4MB","macAddress":"x"}`,
		"object flash":    `{"chipID":"a","coreCount":"2","siliconRevision":"1","flash":{},"macAddress":"x"}`,
		"not json":        `<html>ok</html>`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseDeviceInfo([]byte(body)); err == nil {
				t.Error("ParseDeviceInfo() should fail")
			}
		})
	}
}
