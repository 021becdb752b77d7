package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfig reads <name>.yaml from the first of the working directory,
// $HOME/.config/npc-engine/ and /etc/npc-engine/ (searched in that order)
// that holds one; files in the later paths are not merged in. It applies
// NPC_ENGINE_-prefixed environment overrides, and decodes the result into
// out, which must be a pointer to a mapstructure-tagged struct.
func LoadConfig(name string, out interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/npc-engine")
	v.AddConfigPath("/etc/npc-engine")

	v.SetEnvPrefix("npc_engine")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config %s: %w", name, err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("decoding config %s: %w", name, err)
	}

	return nil
}
