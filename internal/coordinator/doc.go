// Package coordinator keeps the last-known-good readings of one device.
//
// A Coordinator wraps a device client. Each Refresh connects if the client is
// not connected yet, fetches readings and either swaps in a new Snapshot or
// reports an *UpdateFailedError while the previous snapshot stays in place.
// Consumers therefore see complete fresh data or the last complete data,
// never a partial update.
//
// The coordinator does not own a timer. A scheduler calls Refresh on a fixed
// interval; the first refresh is run synchronously during setup through
// FirstRefresh so a device that cannot be reached fails setup.
package coordinator
