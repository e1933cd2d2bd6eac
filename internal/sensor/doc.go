// Package sensor exposes the measurements of a device as entities.
//
// There is one Entity type. Each of the five measurements (CO2, VOC, PM1,
// PM2.5, PM10) is an entry of Descriptions holding its metadata and a selector
// that picks the value out of a readings sample. Entities read from their
// coordinator on demand and hold no copy of the data.
package sensor
