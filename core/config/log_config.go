package config

// LokiConfig holds the connection details for shipping logs to a Loki
// instance via the lokirus hook. Address left empty disables the hook.
type LokiConfig struct {
	Address string            `mapstructure:"address" yaml:"address"`
	Labels  map[string]string `mapstructure:"labels" yaml:"labels"`
}

// LogConfig controls logrus setup: level, formatter ("text" or "json") and
// optional Loki shipping.
type LogConfig struct {
	Formatter string     `mapstructure:"formatter" yaml:"formatter"`
	Level     string     `mapstructure:"level" yaml:"level"`
	Loki      LokiConfig `mapstructure:"loki" yaml:"loki"`
}
