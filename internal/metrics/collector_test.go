package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/muurk/esp32aq/internal/coordinator"
	"github.com/muurk/esp32aq/internal/device"
	"github.com/muurk/esp32aq/internal/hub"
)

type fakeClient struct {
	readings device.Readings
	err      error
}

func (f *fakeClient) Host() string                      { return "192.168.1.40" }
func (f *fakeClient) Connected() bool                   { return true }
func (f *fakeClient) Connect(ctx context.Context) error { return nil }
func (f *fakeClient) DeviceInfo() (device.DeviceInfo, error) {
	return device.DeviceInfo{ChipID: "a4cf12fe"}, nil
}
func (f *fakeClient) Readings(ctx context.Context) (device.Readings, error) {
	return f.readings, f.err
}
func (f *fakeClient) Close() {}

type staticLister []*hub.Entry

func (l staticLister) List() []*hub.Entry { return l }

func newEntry(client *fakeClient) *hub.Entry {
	return &hub.Entry{
		ChipID: "a4cf12fe",
		Name:   "Living Room",
		Info: device.DeviceInfo{
			ChipID: "a4cf12fe", CoreCount: "2", SiliconRevision: "1",
			Flash: "4MB", MACAddress: "A4:CF:12:FE:00:01",
		},
		Coordinator: coordinator.New(client),
	}
}

func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}
	return byName
}

func TestCollector_NoSnapshot(t *testing.T) {
	entry := newEntry(&fakeClient{})
	mfs := gather(t, NewCollector(staticLister{entry}))

	if _, ok := mfs["esp32aq_co2_ppm"]; ok {
		t.Error("reading gauges should not be exported before the first success")
	}
	if _, ok := mfs["esp32aq_last_success_timestamp_seconds"]; ok {
		t.Error("last success should not be exported before the first success")
	}
	up := mfs["esp32aq_up"]
	if up == nil || up.GetMetric()[0].GetGauge().GetValue() != 0 {
		t.Errorf("esp32aq_up = %v, want 0", up)
	}
}

func TestCollector_Readings(t *testing.T) {
	client := &fakeClient{readings: device.Readings{CO2: 415, VOC: 42, PM1: 1.2, PM25: 3.4, PM10: 5.6}}
	entry := newEntry(client)
	if _, err := entry.Coordinator.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	c := NewCollector(staticLister{entry})

	expected := `
# HELP esp32aq_co2_ppm CO2 concentration in parts per million
# TYPE esp32aq_co2_ppm gauge
esp32aq_co2_ppm{chip_id="a4cf12fe",host="192.168.1.40",name="Living Room"} 415
# HELP esp32aq_pm25_ugm3 Particulate matter below 2.5 microns, µg/m³
# TYPE esp32aq_pm25_ugm3 gauge
esp32aq_pm25_ugm3{chip_id="a4cf12fe",host="192.168.1.40",name="Living Room"} 3.4
# HELP esp32aq_up Whether the last refresh of the device succeeded
# TYPE esp32aq_up gauge
esp32aq_up{chip_id="a4cf12fe",host="192.168.1.40",name="Living Room"} 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"esp32aq_co2_ppm", "esp32aq_pm25_ugm3", "esp32aq_up"); err != nil {
		t.Error(err)
	}

	mfs := gather(t, c)
	info := mfs["esp32aq_device_info"]
	if info == nil {
		t.Fatal("esp32aq_device_info missing")
	}
	labels := map[string]string{}
	for _, lp := range info.GetMetric()[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	if labels["mac"] != "A4:CF:12:FE:00:01" || labels["flash"] != "4MB" {
		t.Errorf("device_info labels = %v", labels)
	}
}

func TestCollector_StaleAfterFailure(t *testing.T) {
	client := &fakeClient{readings: device.Readings{CO2: 415}}
	entry := newEntry(client)
	_, _ = entry.Coordinator.Refresh(context.Background())

	client.err = errors.New("device unreachable")
	_, _ = entry.Coordinator.Refresh(context.Background())
	_, _ = entry.Coordinator.Refresh(context.Background())

	c := NewCollector(staticLister{entry})
	mfs := gather(t, c)

	if got := mfs["esp32aq_up"].GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Errorf("esp32aq_up = %v, want 0", got)
	}
	if got := mfs["esp32aq_consecutive_failures"].GetMetric()[0].GetGauge().GetValue(); got != 2 {
		t.Errorf("esp32aq_consecutive_failures = %v, want 2", got)
	}
	if got := mfs["esp32aq_co2_ppm"].GetMetric()[0].GetGauge().GetValue(); got != 415 {
		t.Errorf("esp32aq_co2_ppm = %v, want the stale 415", got)
	}
}

func TestCollector_Empty(t *testing.T) {
	if n := testutil.CollectAndCount(NewCollector(staticLister{})); n != 0 {
		t.Errorf("CollectAndCount() = %d, want 0", n)
	}
}
