// Package influxdb records delivered device states in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring. The
// notify aggregator calls WriteDeviceStates after every successful state
// callback, so the bucket holds a history of what Alice was told.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry is optional
//	}
//	defer client.Close()
//
//	client.WriteDeviceStates(user.ID, devices)
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered to the
// callback set with SetOnError. Connection and health check errors are
// returned directly.
package influxdb
