package reconcile

import "errors"

// ErrDeviceNotFound is returned when the device is not declared for the user.
var ErrDeviceNotFound = errors.New("device not found")
