// Package mqtt publishes device entities to Home Assistant over MQTT.
//
// Topics, with the default prefixes:
//
//	homeassistant/sensor/<chip>/<key>/config   retained discovery config per entity
//	esp32aq/<chip>/state                        retained JSON state, all five values
//	esp32aq/<chip>/availability                 "online" or "offline"
//	esp32aq/bridge                              bridge status, backed by the last will
//
// State is republished after every successful refresh; a failed refresh only
// flips availability to offline so subscribers keep the last good values.
package mqtt
