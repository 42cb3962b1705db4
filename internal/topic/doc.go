// Package topic resolves capability and property references to concrete MQTT
// topics and parses concrete topics back into references.
//
// Templates carry the placeholders <user_name> (the user's e-mail) and
// <device_id>:
//
//	{
//	  "deviceType": "devices.types.light",
//	  "stateTopic": "alice/<user_name>/<device_id>/state",
//	  "commandTopics": [
//	    {"topic": "alice/<user_name>/<device_id>/on",
//	     "capability": {"type": "devices.capabilities.on_off", "stateInstance": "on"}}
//	  ]
//	}
//
// Lookups never fail for ordinary absence: unmatched topics return false and
// unresolvable names are empty strings.
package topic
