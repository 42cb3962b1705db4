// Package catalog holds the static configuration documents of the bridge:
// the device list, the user list and the MQTT topic templates.
//
// The documents are read once at startup and are read-only afterwards.
// Changing them requires a restart.
//
//	cat, err := catalog.Load(cfg.Catalog)
//	devices := cat.UserDevices(user)
package catalog
