// Package notify tells the voice-assistant platform about device changes.
//
// Reconciled devices are buffered per user and flushed when no new update
// has arrived for the debounce window. A flush sends either a state
// notification with the minimal payload of every buffered device or, when
// a device's capability or property count differs from the last delivered
// snapshot, a discovery notification. After a discovery the state
// notification is marked due and is sent by FlushDue once the platform has
// re-read the device list.
//
// The package also holds the outbound platform client, the delivered
// snapshot log and the registry of topic users that cannot be notified.
package notify
