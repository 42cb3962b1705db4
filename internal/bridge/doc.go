// Package bridge wires the MQTT traffic, the topic cache, the reconciler and
// the aggregator into the two flows of the service.
//
// Inbound: every MQTT message is cached; a relevant change of a known
// user's device is reconciled and handed to the aggregator. Topics that
// fall silent are reconciled again so the platform learns the device went
// offline.
//
// Outbound: device query and action requests from the platform are
// answered from reconciled snapshots, and actions are converted to wire
// messages and published on the devices' command topics.
package bridge
