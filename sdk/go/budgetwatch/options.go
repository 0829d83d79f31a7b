package budgetwatch

import "github.com/ppiankov/budgetwatch/internal/sink"

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	configPath   string
	profilesPath string
	sink         sink.Sink
	sinkSet      bool
}

// WithConfig loads profiles and sinks from a budgetwatch YAML config file.
// A missing file yields the defaults.
func WithConfig(path string) Option {
	return func(c *clientConfig) { c.configPath = path }
}

// WithProfilesFile overlays profiles from a YAML file onto the catalog.
func WithProfilesFile(path string) Option {
	return func(c *clientConfig) { c.profilesPath = path }
}

// WithSink routes obligations to s instead of the configured sinks.
// The client takes ownership and closes s on Close. A nil sink disables
// delivery.
func WithSink(s sink.Sink) Option {
	return func(c *clientConfig) {
		c.sink = s
		c.sinkSet = true
	}
}
