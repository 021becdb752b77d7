// Package log configures the process-wide logrus logger from a
// config.LogConfig.
package log

import (
	"github.com/npc-engine/npc-engine/core/config"
	log "github.com/sirupsen/logrus"
	"github.com/yukitsune/lokirus"
)

// Initialize sets the standard logger's level, formatter and, if a Loki
// address is configured, registers a lokirus hook for Info/Warn/Error/Fatal.
// An invalid or empty level leaves the current level untouched.
func Initialize(cfg config.LogConfig) {
	if cfg.Level != "" {
		if level, err := log.ParseLevel(cfg.Level); err == nil {
			log.SetLevel(level)
		}
	}

	switch cfg.Formatter {
	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.Loki.Address == "" {
		return
	}

	opts := lokirus.NewLokiHookOptions().
		WithLevelMap(lokirus.LevelMap{log.PanicLevel: "critical"}).
		WithFormatter(&log.JSONFormatter{}).
		WithStaticLabels(lokirus.Labels(cfg.Loki.Labels))

	hook := lokirus.NewLokiHookWithOpts(
		cfg.Loki.Address,
		opts,
		log.InfoLevel,
		log.WarnLevel,
		log.ErrorLevel,
		log.FatalLevel,
	)

	log.AddHook(hook)
}
