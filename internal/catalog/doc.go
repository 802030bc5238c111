// Package catalog persists the devices the bridge has seen on the gateway.
//
// The in-memory registries inside it600.Gateway are rebuilt on every poll
// and forget a device the moment it disappears. The catalog keeps one row
// per (kind, id) with the first and last time it was seen, so the API can
// show devices that have gone offline and operators can tell a renamed
// device from a new one.
package catalog
