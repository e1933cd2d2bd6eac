package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/esp32aq/internal/hub"
	"github.com/muurk/esp32aq/internal/sensor"
)

const namespace = "esp32aq"

// Lister returns the devices to export. *hub.Hub implements it.
type Lister interface {
	List() []*hub.Entry
}

var labelNames = []string{"chip_id", "name", "host"}

func newMetric(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labelNames, nil)
}

var (
	readingMetrics = map[string]*prometheus.Desc{
		"co2":  newMetric("co2_ppm", "CO2 concentration in parts per million"),
		"voc":  newMetric("voc_index", "Volatile organic compounds index"),
		"pm1":  newMetric("pm1_ugm3", "Particulate matter below 1 micron, µg/m³"),
		"pm2":  newMetric("pm25_ugm3", "Particulate matter below 2.5 microns, µg/m³"),
		"pm10": newMetric("pm10_ugm3", "Particulate matter below 10 microns, µg/m³"),
	}

	upDesc          = newMetric("up", "Whether the last refresh of the device succeeded")
	lastSuccessDesc = newMetric("last_success_timestamp_seconds", "Unix time of the last successful refresh")
	failuresDesc    = newMetric("consecutive_failures", "Number of failed refreshes since the last success")
	infoDesc        = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "device_info"),
		"Device hardware information",
		[]string{"chip_id", "mac", "core_count", "silicon_revision", "flash"}, nil,
	)
)

// Collector exports the cached state of every device in a hub. Collect never
// talks to a device; it reads the coordinators' snapshots.
type Collector struct {
	devices Lister
}

// NewCollector creates a collector over devices
func NewCollector(devices Lister) *Collector {
	return &Collector{devices: devices}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range readingMetrics {
		ch <- d
	}
	ch <- upDesc
	ch <- lastSuccessDesc
	ch <- failuresDesc
	ch <- infoDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, e := range c.devices.List() {
		coord := e.Coordinator
		labels := []string{e.ChipID, e.Name, coord.Host()}
		status := coord.Status()

		up := 0.0
		if status.Available {
			up = 1
		}
		ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, up, labels...)
		ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.GaugeValue, float64(status.ConsecutiveFailures), labels...)
		ch <- prometheus.MustNewConstMetric(infoDesc, prometheus.GaugeValue, 1,
			e.Info.ChipID, e.Info.MACAddress, e.Info.CoreCount, e.Info.SiliconRevision, e.Info.Flash)

		snap, err := coord.Latest()
		if err != nil {
			continue
		}

		ch <- prometheus.MustNewConstMetric(lastSuccessDesc, prometheus.GaugeValue,
			float64(snap.UpdatedAt.UnixNano())/1e9, labels...)
		for _, d := range sensor.Descriptions {
			desc, ok := readingMetrics[d.Key]
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, d.Value(snap.Readings), labels...)
		}
	}
}
