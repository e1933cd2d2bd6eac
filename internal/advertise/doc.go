// Package advertise announces the bridge API over multicast DNS.
//
// The bridge registers itself as a "_esp32aq._tcp" service so dashboards and
// the diagnostic CLI can find it without configuration. Browse is the client
// side of the same service type. Sensors themselves are never discovered;
// their hosts come from the configuration file.
package advertise
