package alice

// Capability types.
const (
	CapabilityOnOff        = "devices.capabilities.on_off"
	CapabilityColorSetting = "devices.capabilities.color_setting"
	CapabilityVideoStream  = "devices.capabilities.video_stream"
	CapabilityMode         = "devices.capabilities.mode"
	CapabilityRange        = "devices.capabilities.range"
	CapabilityToggle       = "devices.capabilities.toggle"
)

// Property types.
const (
	PropertyFloat = "devices.properties.float"
	PropertyEvent = "devices.properties.event"
)

// Per-device and per-action error codes understood by the platform.
const (
	ErrorDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrorDeviceNotFound    = "DEVICE_NOT_FOUND"
	ErrorInvalidAction     = "INVALID_ACTION"
	ErrorInvalidValue      = "INVALID_VALUE"
	ErrorUnknownUser       = "UNKNOWN_USER"
)

// Action result statuses.
const (
	StatusDone  = "DONE"
	StatusError = "ERROR"
)

// Device is a smart-home device as exchanged with the platform.
//
// A device carrying ErrorCode has no capabilities or properties.
type Device struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Description  string         `json:"description,omitempty"`
	Room         string         `json:"room,omitempty"`
	Type         string         `json:"type,omitempty"`
	CustomData   map[string]any `json:"custom_data,omitempty"`
	Capabilities []Capability   `json:"capabilities,omitempty"`
	Properties   []Property     `json:"properties,omitempty"`
	DeviceInfo   *DeviceInfo    `json:"device_info,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// DeviceInfo describes the hardware behind a device.
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	HWVersion    string `json:"hw_version,omitempty"`
	SWVersion    string `json:"sw_version,omitempty"`
}

// Capability is a controllable device function.
type Capability struct {
	Type        string         `json:"type"`
	Retrievable *bool          `json:"retrievable,omitempty"`
	Reportable  *bool          `json:"reportable,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	State       *State         `json:"state,omitempty"`
}

// Property is a read-only sensor-like device attribute.
type Property struct {
	Type        string         `json:"type"`
	Retrievable *bool          `json:"retrievable,omitempty"`
	Reportable  *bool          `json:"reportable,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	State       *State         `json:"state,omitempty"`
}

// State is the instance/value pair of a capability or property.
//
// Relative and ActionResult only appear on action requests and responses.
type State struct {
	Instance     string        `json:"instance"`
	Value        any           `json:"value,omitempty"`
	Relative     bool          `json:"relative,omitempty"`
	ActionResult *ActionResult `json:"action_result,omitempty"`
}

// ActionResult reports the outcome of one capability action.
type ActionResult struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Ref identifies a capability or a property instance of a device.
// Exactly one of the capability or property pairs is expected to be set.
type Ref struct {
	CapabilityType     string
	CapabilityInstance string
	PropertyType       string
	PropertyInstance   string
}

// CapabilityRef builds a Ref for a capability instance.
func CapabilityRef(typ, instance string) Ref {
	return Ref{CapabilityType: typ, CapabilityInstance: instance}
}

// PropertyRef builds a Ref for a property instance.
func PropertyRef(typ, instance string) Ref {
	return Ref{PropertyType: typ, PropertyInstance: instance}
}

// IsZero reports whether the ref names nothing.
func (r Ref) IsZero() bool {
	return r == Ref{}
}

// Unreachable returns the error-only form of a device that is declared but offline.
func Unreachable(id, message string) Device {
	return Device{ID: id, ErrorCode: ErrorDeviceUnreachable, ErrorMessage: message}
}

// NotFound returns the error-only form of a device the user does not own.
func NotFound(id, message string) Device {
	return Device{ID: id, ErrorCode: ErrorDeviceNotFound, ErrorMessage: message}
}
