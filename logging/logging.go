package logging

import (
	"io"
	"os"
	"strings"

	"github.com/Graylog2/go-gelf/gelf"
	log "github.com/sirupsen/logrus"

	"laserdamage/model"
)

type Config struct {
	Level  string
	Format string // text 或 json
	// Graylog GELF UDP 地址，为空时只输出到 stderr
	Graylog  string
	Facility string
}

var DefaultConfig = Config{Level: "info", Format: "text", Facility: "laserdamage"}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Apply configures l from cfg. The returned closer releases the GELF writer.
func Apply(l *log.Logger, cfg Config) (io.Closer, error) {
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, model.Configf("log level %q: %v", cfg.Level, err)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	case "json":
		l.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, model.Configf("unknown log format %q", cfg.Format)
	}
	l.SetLevel(lvl)

	if cfg.Graylog == "" {
		l.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}
	w, err := gelf.NewWriter(cfg.Graylog)
	if err != nil {
		return nil, model.Configf("graylog %s: %v", cfg.Graylog, err)
	}
	if cfg.Facility != "" {
		w.Facility = cfg.Facility
	}
	l.SetOutput(io.MultiWriter(os.Stderr, w))
	return w, nil
}

// Setup configures the standard logger.
func Setup(cfg Config) (io.Closer, error) {
	return Apply(log.StandardLogger(), cfg)
}
