package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nerrad567/alice-bridge/internal/alice"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/config"
	"github.com/nerrad567/alice-bridge/internal/topic"
)

// Catalog is the loaded set of static documents.
//
// A Catalog is never mutated after construction and is safe for concurrent use.
// Every device and user returned is a copy.
type Catalog struct {
	devices []alice.Device
	byID    map[string]int
	users   []User
	topics  topic.Config
}

// Load reads the three documents named in cfg.
func Load(cfg config.CatalogConfig) (*Catalog, error) {
	var devices []alice.Device
	if err := readJSON(cfg.DevicesFile, &devices); err != nil {
		return nil, err
	}
	var users []User
	if err := readJSON(cfg.UsersFile, &users); err != nil {
		return nil, err
	}
	var topics topic.Config
	if err := readJSON(cfg.MQTTFile, &topics); err != nil {
		return nil, err
	}
	return New(devices, users, topics), nil
}

// New builds a catalog from already decoded documents.
func New(devices []alice.Device, users []User, topics topic.Config) *Catalog {
	c := &Catalog{
		devices: devices,
		byID:    make(map[string]int, len(devices)),
		users:   users,
		topics:  topics,
	}
	for i, d := range devices {
		if _, dup := c.byID[d.ID]; !dup {
			c.byID[d.ID] = i
		}
	}
	return c
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from trusted config
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDocument, path, err)
	}
	return nil
}

// Topics returns the topic templates document.
func (c *Catalog) Topics() topic.Config {
	return c.topics
}

// Devices returns every declared device.
func (c *Catalog) Devices() []alice.Device {
	out := make([]alice.Device, len(c.devices))
	for i, d := range c.devices {
		out[i] = d.DeepCopy()
	}
	return out
}

// UserByID finds a user by identifier. The password is not included.
func (c *Catalog) UserByID(id string) (User, error) {
	for _, u := range c.users {
		if u.ID.String() == id {
			return u.Public(), nil
		}
	}
	return User{}, fmt.Errorf("%w: id %s", ErrUserNotFound, id)
}

// UserByEmail finds a user by e-mail address, including the password hash.
// It is meant for credential checks only.
func (c *Catalog) UserByEmail(email string) (User, error) {
	for _, u := range c.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%w: email %s", ErrUserNotFound, email)
}

// UserByNameOrEmail resolves the user name embedded in a topic. Values
// containing '@' are matched against e-mail addresses, anything else
// against full names.
func (c *Catalog) UserByNameOrEmail(nameOrEmail string) (User, error) {
	email := isEmailLike(nameOrEmail)
	for _, u := range c.users {
		if (email && u.Email == nameOrEmail) || (!email && u.FullName == nameOrEmail) {
			return u.Public(), nil
		}
	}
	return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, nameOrEmail)
}

// UserDevices returns the user's declared devices in deviceIds order.
// Unknown ids are skipped.
func (c *Catalog) UserDevices(u User) []alice.Device {
	out := make([]alice.Device, 0, len(u.DeviceIDs))
	for _, id := range u.DeviceIDs {
		if i, ok := c.byID[id]; ok {
			out = append(out, c.devices[i].DeepCopy())
		}
	}
	return out
}

// UserDevice returns one of the user's devices.
func (c *Catalog) UserDevice(u User, deviceID string) (alice.Device, bool) {
	if !u.OwnsDevice(deviceID) {
		return alice.Device{}, false
	}
	i, ok := c.byID[deviceID]
	if !ok {
		return alice.Device{}, false
	}
	return c.devices[i].DeepCopy(), true
}

// DeviceType returns the declared type of a device owned by the user whose
// e-mail is userName. It satisfies topic.DeviceTypes.
func (c *Catalog) DeviceType(userName, deviceID string) (string, bool) {
	u, err := c.UserByEmail(userName)
	if err != nil {
		return "", false
	}
	i, ok := c.byID[deviceID]
	if !ok || !u.OwnsDevice(deviceID) || c.devices[i].Type == "" {
		return "", false
	}
	return c.devices[i].Type, true
}
