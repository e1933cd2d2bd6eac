// Package metrics exports device readings and refresh health to Prometheus.
//
// Reading gauges (esp32aq_co2_ppm, esp32aq_voc_index, esp32aq_pm1_ugm3,
// esp32aq_pm25_ugm3, esp32aq_pm10_ugm3) appear once a device has produced
// its first snapshot and keep the last good value after failures;
// esp32aq_up tells whether that value is current.
package metrics
