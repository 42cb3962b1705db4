// Package alice defines the smart-home device model exchanged with the
// voice-assistant platform: devices, capabilities, properties, their states
// and the per-item error codes.
//
// Devices are loaded from static configuration and never persisted with live
// values. Callers that enrich a device with live state work on DeepCopy.
package alice
