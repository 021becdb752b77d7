package config

import "time"

// BrokerConfig is the top-level configuration for the broker daemon.
type BrokerConfig struct {
	Service ServiceConfig `mapstructure:"service" yaml:"service"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// ModelsPath is the directory scanned for package directories. Falls
	// back to NPC_ENGINE_MODELS_PATH when empty.
	ModelsPath string `mapstructure:"models_path" yaml:"models_path"`

	// Transport selects the Server Front-End implementation: "socket" for
	// the framed ZeroMQ ROUTER variant, "http" for the gin variant.
	Transport string `mapstructure:"transport" yaml:"transport" default:"socket"`

	// PublicEndpoint is where clients connect. For the socket transport
	// this is a zmq endpoint (e.g. tcp://*:11000); for http it is a
	// host:port pair.
	PublicEndpoint string `mapstructure:"public_endpoint" yaml:"public_endpoint" default:"tcp://*:11000"`

	// InternalEndpoint is the ROUTER socket workers connect their Client
	// Stub to when calling a peer package. Unused by the http transport,
	// which has no notion of a worker-to-worker back channel.
	InternalEndpoint string `mapstructure:"internal_endpoint" yaml:"internal_endpoint" default:"ipc://@npc-engine-self"`

	// StartServices, when true, starts every discovered package
	// immediately instead of waiting for the first request to address it.
	StartServices bool `mapstructure:"start_services" yaml:"start_services"`

	// ProbeInterval is the readiness-probe backoff used while a worker is
	// starting up (spec §4.C start_service step 4).
	ProbeInterval time.Duration `mapstructure:"probe_interval" yaml:"probe_interval" default:"1s"`

	// ProbeTimeout bounds how long a single readiness-probe receive waits
	// for a starting worker to answer before the Control Service retries.
	// No timeout is ever imposed on an ordinary dispatched request.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" default:"10s"`

	// BusEndpoint, when non-empty, enables the event bus slot transitions
	// are published to (see core/bus). It is a base address: brokerd
	// appends "-backend" (XSUB side) and "-frontend" (XPUB side) to it.
	BusEndpoint string `mapstructure:"bus_endpoint" yaml:"bus_endpoint"`
}

// DefaultBrokerConfig returns sane defaults for running the broker locally.
func DefaultBrokerConfig() *BrokerConfig {
	return &BrokerConfig{
		Service:          ServiceConfig{ID: "npc-engine.broker"},
		Log:              LogConfig{Formatter: "text", Level: "info"},
		Transport:        "socket",
		PublicEndpoint:   "tcp://*:11000",
		InternalEndpoint: "ipc://@npc-engine-self",
		StartServices:    false,
		ProbeInterval:    time.Second,
		ProbeTimeout:     10 * time.Second,
	}
}

// WorkerConfig groups the settings of a worker subprocess: fields from its
// package's config.yml plus the invocation arguments the Control Service
// passes on the command line. No package here loads it; workerloop.Run
// parses the model_type/type keys of config.yml itself.
type WorkerConfig struct {
	Service ServiceConfig `mapstructure:"service" yaml:"service"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// Type selects the registered implementation class (config.yml's
	// model_type, falling back to type).
	Type string `mapstructure:"type" yaml:"type"`

	// URI is the private endpoint the worker binds, assigned by the
	// Control Service at spawn time.
	URI string `mapstructure:"uri" yaml:"-"`

	// ModelPath is the package directory, assigned by the Control Service
	// at spawn time.
	ModelPath string `mapstructure:"model_path" yaml:"-"`
}
