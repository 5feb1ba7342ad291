package cardio

import "fmt"

// Config is a map of keyword to arbitrary data to specify configurations via keyword.
// Values typically come from a decoded TOML table.
type Config map[string]interface{}

// GetString returns a string value for the given key.
func (c Config) GetString(key string) (s string, found bool, err error) {
	v, found := c[key]
	if !found || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, fmt.Errorf("setting %q must be a string (%v)", key, v)
	}
	return s, true, nil
}

// GetBool returns a bool value for the given key.
func (c Config) GetBool(key string) (b bool, found bool, err error) {
	v, found := c[key]
	if !found || v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, true, fmt.Errorf("setting %q must be a bool (%v)", key, v)
	}
	return b, true, nil
}

// GetInt returns an int value for the given key.  TOML decodes integers as int64,
// so all integer kinds are accepted.
func (c Config) GetInt(key string) (i int, found bool, err error) {
	v, found := c[key]
	if !found || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case int:
		return x, true, nil
	case int32:
		return int(x), true, nil
	case int64:
		return int(x), true, nil
	case float64:
		return int(x), true, nil
	default:
		return 0, true, fmt.Errorf("setting %q must be an integer (%v)", key, v)
	}
}

// StoreConfig is a store-specific configuration where each store implementation
// defines the types of parameters it accepts.
type StoreConfig struct {
	Config

	// Engine is a simple name describing the engine, e.g., "badger"
	Engine string
}
