// Package reconcile produces the live snapshot of a user's device from the
// topic cache.
//
// A device is available while its state topic holds a cached message.
// Available devices get the value of every capability and property filled
// from its command topic, or from the state topic JSON when the fallback is
// enabled. Event properties with undeclared values are dropped, and mode
// capabilities can be narrowed to the modes the device currently reports
// on its config topic.
package reconcile
