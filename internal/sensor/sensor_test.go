package sensor

import (
	"testing"
	"time"

	"github.com/muurk/esp32aq/internal/coordinator"
	"github.com/muurk/esp32aq/internal/device"
)

type stubSource struct {
	snap      *coordinator.Snapshot
	available bool
}

func (s *stubSource) Latest() (coordinator.Snapshot, error) {
	if s.snap == nil {
		return coordinator.Snapshot{}, coordinator.ErrNotAvailable
	}
	return *s.snap, nil
}

func (s *stubSource) Available() bool { return s.available }

var info = device.DeviceInfo{ChipID: "a4cf12fe", MACAddress: "A4:CF:12:FE:00:01"}

func TestDescriptions(t *testing.T) {
	want := []struct {
		key, label, unit, icon, class, attr string
	}{
		{"co2", "CO2", "ppm", "mdi:molecule-co2", "carbon_dioxide", "concentration"},
		{"voc", "VOC", "index", "mdi:scent", "volatile_organic_compounds", "index"},
		{"pm1", "PM1", "µg/m³", "mdi:factory", "pm1", "concentration"},
		{"pm2", "PM2.5", "µg/m³", "mdi:factory", "pm25", "concentration"},
		{"pm10", "PM10", "µg/m³", "mdi:factory", "pm10", "concentration"},
	}

	if len(Descriptions) != len(want) {
		t.Fatalf("len(Descriptions) = %d, want %d", len(Descriptions), len(want))
	}
	for i, w := range want {
		d := Descriptions[i]
		if d.Key != w.key || d.Label != w.label || d.Unit != w.unit || d.Icon != w.icon ||
			d.DeviceClass != w.class || d.Attribute != w.attr || d.StateClass != "measurement" {
			t.Errorf("Descriptions[%d] = %+v", i, d)
		}
	}
}

func TestEntity_Values(t *testing.T) {
	src := &stubSource{
		snap: &coordinator.Snapshot{
			Readings:  device.Readings{CO2: 415, VOC: 42, PM1: 1.2, PM25: 3.4, PM10: 5.6},
			UpdatedAt: time.Now(),
		},
		available: true,
	}

	entities := NewEntities(info, "192.168.1.40", src)
	want := map[string]string{
		"a4cf12fe_co2":  "415",
		"a4cf12fe_voc":  "42",
		"a4cf12fe_pm1":  "1.2",
		"a4cf12fe_pm2":  "3.4",
		"a4cf12fe_pm10": "5.6",
	}

	for _, e := range entities {
		got := e.FormattedValue()
		if got != want[e.UniqueID()] {
			t.Errorf("%s FormattedValue() = %q, want %q", e.UniqueID(), got, want[e.UniqueID()])
		}
		if !e.Available() {
			t.Errorf("%s should be available", e.UniqueID())
		}
	}

	if entities[3].Name() != "a4cf12fe PM2.5" {
		t.Errorf("Name() = %q, want %q", entities[3].Name(), "a4cf12fe PM2.5")
	}

	st := entities[1].State()
	if st.Value == nil || *st.Value != 42 || st.Attributes["index"] != 42 {
		t.Errorf("State() = %+v", st)
	}
}

func TestEntity_NoSnapshot(t *testing.T) {
	e := NewEntity(Descriptions[0], info, "192.168.1.40", &stubSource{available: true})

	if e.Available() {
		t.Error("entity without data should be unavailable")
	}
	if _, ok := e.Value(); ok {
		t.Error("Value() ok = true without data")
	}
	if st := e.State(); st.Value != nil || st.Attributes != nil {
		t.Errorf("State() = %+v, want no value", st)
	}
}

func TestEntity_StaleAfterFailure(t *testing.T) {
	src := &stubSource{
		snap:      &coordinator.Snapshot{Readings: device.Readings{CO2: 600}},
		available: false,
	}
	e := NewEntity(Descriptions[0], info, "192.168.1.40", src)

	if e.Available() {
		t.Error("entity should be unavailable after a failed refresh")
	}
	if v, ok := e.Value(); !ok || v != 600 {
		t.Errorf("Value() = %v, %v; stale value should still be readable", v, ok)
	}
}

func TestNewDeviceBlock(t *testing.T) {
	b := NewDeviceBlock(info, "sensor.local:8080")

	if len(b.Identifiers) != 1 || b.Identifiers[0] != "a4cf12fe" {
		t.Errorf("Identifiers = %v", b.Identifiers)
	}
	if b.Model != "ESP32" || b.SoftwareVersion != "1.0.0" {
		t.Errorf("DeviceBlock = %+v", b)
	}
	if b.ConfigurationURL != "http://sensor.local:8080" {
		t.Errorf("ConfigurationURL = %s", b.ConfigurationURL)
	}
}

func TestFormatValue(t *testing.T) {
	tests := map[float64]string{
		415:   "415",
		3.4:   "3.4",
		0:     "0",
		12.25: "12.25",
	}
	for in, want := range tests {
		if got := FormatValue(in); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", in, got, want)
		}
	}
}
