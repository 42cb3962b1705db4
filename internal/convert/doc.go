// Package convert translates MQTT wire messages to the structured values of
// the smart-home model and back.
//
// Without a mapping table the common cases round-trip:
//
//	c := convert.New()
//	c.ToValue("on", nil)               // true
//	c.ToMessage(true, nil)             // "on"
//	c.ToValue("40", nil)               // 40.0
//	c.ToValue(`{"x":1}`, nil)          // map[string]any{"x": 1.0}
//
// Conversion never fails: a message matching nothing is returned lower-cased.
package convert
