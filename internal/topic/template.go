package topic

// Placeholders substituted into topic patterns.
const (
	PlaceholderUser   = "<user_name>"
	PlaceholderDevice = "<device_id>"
)

// Type classifies a concrete topic by the template slot it matches.
type Type string

// Topic slot types, in reverse-resolution priority order.
const (
	TypeState     Type = "stateTopic"
	TypeConfig    Type = "configTopic"
	TypeAvailable Type = "availableTopic"
	TypeCommand   Type = "commandTopic"
)

// Config is the topic templates document.
type Config struct {
	SubscribeTopic string     `json:"subscribeTopic"`
	Topics         []Template `json:"topics"`
}

// Template describes the topics of one device type.
type Template struct {
	DeviceType     string         `json:"deviceType"`
	StateTopic     string         `json:"stateTopic"`
	ConfigTopic    string         `json:"configTopic"`
	AvailableTopic string         `json:"availableTopic"`
	CommandTopics  []CommandTopic `json:"commandTopics"`
}

// CommandTopic binds a topic pattern to exactly one capability or property instance.
type CommandTopic struct {
	Topic      string   `json:"topic"`
	Capability *Binding `json:"capability,omitempty"`
	Property   *Binding `json:"property,omitempty"`
	Mapping    Mapping  `json:"messageValueMapping,omitempty"`
	StateKeys  []string `json:"topicStateKeys,omitempty"`
	ConfigKey  string   `json:"topicConfigKey,omitempty"`
}

// Binding is a type + state instance pair.
type Binding struct {
	Type          string `json:"type"`
	StateInstance string `json:"stateInstance"`
}

// Names holds the concrete topics resolved for one device reference.
// Unresolvable slots are empty strings.
type Names struct {
	StateTopic     string
	ConfigTopic    string
	AvailableTopic string
	CommandTopic   string
}

// Match is the result of reverse-resolving a concrete topic.
type Match struct {
	Type       Type
	UserName   string
	DeviceID   string
	DeviceType string

	// Command is set when Type is TypeCommand.
	Command *CommandTopic
}

// CommandData is the metadata of a concrete command topic.
type CommandData struct {
	UserName           string
	DeviceID           string
	DeviceType         string
	CapabilityType     string
	CapabilityInstance string
	PropertyType       string
	PropertyInstance   string
	Mapping            Mapping
	StateKeys          []string
	ConfigKey          string
}
