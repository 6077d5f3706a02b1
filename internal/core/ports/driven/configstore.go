package driven

// ConfigStore holds settings under dotted keys such as "retrieval.max_results".
// Typed getters return the zero value for a missing key or a value of the
// wrong type, so SettingsService can apply its own defaults.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string

	// GetInt truncates float values, since decoded numbers may be either.
	GetInt(key string) int
	GetBool(key string) bool

	// GetFloat converts integer values.
	GetFloat(key string) float64
	GetStringSlice(key string) []string

	Set(key string, value any) error
	Save() error
	Load() error

	// Path is the backing file, or ":memory:".
	Path() string
}
