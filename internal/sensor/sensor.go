package sensor

import (
	"strconv"

	"github.com/muurk/esp32aq/internal/coordinator"
	"github.com/muurk/esp32aq/internal/device"
)

// Units of measurement
const (
	UnitPPM           = "ppm"
	UnitIndex         = "index"
	UnitMicrogramsM3  = "µg/m³"
	StateClassMeasure = "measurement"

	// Manufacturer metadata shown in the device block
	Model           = "ESP32"
	SoftwareVersion = "1.0.0"
)

// Description is the static metadata of one measurement
type Description struct {
	Key         string // unique id suffix, e.g. "pm2"
	Label       string // display label, e.g. "PM2.5"
	Unit        string
	Icon        string
	DeviceClass string
	StateClass  string
	// Attribute is the extra state attribute name. Its value is always the
	// current reading.
	Attribute string
	// Value selects the measurement from a readings sample
	Value func(device.Readings) float64
}

// Descriptions lists the five measurements exposed for every device
var Descriptions = []Description{
	{
		Key: "co2", Label: "CO2", Unit: UnitPPM, Icon: "mdi:molecule-co2",
		DeviceClass: "carbon_dioxide", StateClass: StateClassMeasure, Attribute: "concentration",
		Value: func(r device.Readings) float64 { return float64(r.CO2) },
	},
	{
		Key: "voc", Label: "VOC", Unit: UnitIndex, Icon: "mdi:scent",
		DeviceClass: "volatile_organic_compounds", StateClass: StateClassMeasure, Attribute: "index",
		Value: func(r device.Readings) float64 { return float64(r.VOC) },
	},
	{
		Key: "pm1", Label: "PM1", Unit: UnitMicrogramsM3, Icon: "mdi:factory",
		DeviceClass: "pm1", StateClass: StateClassMeasure, Attribute: "concentration",
		Value: func(r device.Readings) float64 { return r.PM1 },
	},
	{
		Key: "pm2", Label: "PM2.5", Unit: UnitMicrogramsM3, Icon: "mdi:factory",
		DeviceClass: "pm25", StateClass: StateClassMeasure, Attribute: "concentration",
		Value: func(r device.Readings) float64 { return r.PM25 },
	},
	{
		Key: "pm10", Label: "PM10", Unit: UnitMicrogramsM3, Icon: "mdi:factory",
		DeviceClass: "pm10", StateClass: StateClassMeasure, Attribute: "concentration",
		Value: func(r device.Readings) float64 { return r.PM10 },
	},
}

// DeviceBlock identifies the physical device an entity belongs to
type DeviceBlock struct {
	Identifiers      []string `json:"identifiers"`
	Name             string   `json:"name"`
	Model            string   `json:"model"`
	SoftwareVersion  string   `json:"sw_version"`
	ConfigurationURL string   `json:"configuration_url"`
}

// NewDeviceBlock builds the device block for a device reachable at host
func NewDeviceBlock(info device.DeviceInfo, host string) DeviceBlock {
	return DeviceBlock{
		Identifiers:      []string{info.ChipID},
		Name:             info.ChipID,
		Model:            Model,
		SoftwareVersion:  SoftwareVersion,
		ConfigurationURL: "http://" + host,
	}
}

// Source is the coordinator side an entity reads from
type Source interface {
	Latest() (coordinator.Snapshot, error)
	Available() bool
}

// Entity exposes one measurement of one device
type Entity struct {
	desc   Description
	chipID string
	device DeviceBlock
	source Source
}

// State is a point-in-time view of an entity
type State struct {
	UniqueID    string             `json:"unique_id"`
	Name        string             `json:"name"`
	Available   bool               `json:"available"`
	Value       *float64           `json:"value"`
	Unit        string             `json:"unit"`
	Icon        string             `json:"icon"`
	DeviceClass string             `json:"device_class"`
	StateClass  string             `json:"state_class"`
	Attributes  map[string]float64 `json:"attributes,omitempty"`
}

// NewEntity binds desc to the device identified by info
func NewEntity(desc Description, info device.DeviceInfo, host string, source Source) *Entity {
	return &Entity{
		desc:   desc,
		chipID: info.ChipID,
		device: NewDeviceBlock(info, host),
		source: source,
	}
}

// NewEntities creates one entity per entry of Descriptions
func NewEntities(info device.DeviceInfo, host string, source Source) []*Entity {
	entities := make([]*Entity, 0, len(Descriptions))
	for _, d := range Descriptions {
		entities = append(entities, NewEntity(d, info, host, source))
	}
	return entities
}

// Description returns the entity's static metadata
func (e *Entity) Description() Description {
	return e.desc
}

// UniqueID returns "<chipID>_<key>"
func (e *Entity) UniqueID() string {
	return e.chipID + "_" + e.desc.Key
}

// Name returns "<chipID> <label>"
func (e *Entity) Name() string {
	return e.chipID + " " + e.desc.Label
}

// Device returns the device block
func (e *Entity) Device() DeviceBlock {
	return e.device
}

// Available reports whether the last refresh succeeded and data exists
func (e *Entity) Available() bool {
	if !e.source.Available() {
		return false
	}
	_, err := e.source.Latest()
	return err == nil
}

// Value returns the current measurement. ok is false when no snapshot exists.
func (e *Entity) Value() (v float64, ok bool) {
	snap, err := e.source.Latest()
	if err != nil {
		return 0, false
	}
	return e.desc.Value(snap.Readings), true
}

// FormattedValue returns the value in its shortest decimal form, or "" when
// no snapshot exists.
func (e *Entity) FormattedValue() string {
	v, ok := e.Value()
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// State returns the entity's current state
func (e *Entity) State() State {
	st := State{
		UniqueID:    e.UniqueID(),
		Name:        e.Name(),
		Available:   e.Available(),
		Unit:        e.desc.Unit,
		Icon:        e.desc.Icon,
		DeviceClass: e.desc.DeviceClass,
		StateClass:  e.desc.StateClass,
	}
	if v, ok := e.Value(); ok {
		st.Value = &v
		st.Attributes = map[string]float64{e.desc.Attribute: v}
	}
	return st
}

// FormatValue renders v without trailing zeros ("415", "3.4")
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
