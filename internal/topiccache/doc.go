// Package topiccache stores the last message seen on every MQTT topic.
//
// Messages live in the "topics" hash of a kvstore.Store. Each field gets the
// lifetime of the first topic type it matches, checked in the order
// available, command, state. When a command lifetime is configured the
// cache also arms a disappearance timer per topic, re-armed on every Set,
// and reports topics that stay silent for one and a half lifetimes.
package topiccache
