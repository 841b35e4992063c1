package config

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"superkit-go/bus"
)

const configPrefix = "config"

// Store holds the loaded configuration and reloads it when the file changes.
type Store struct {
	path string
	log  zerolog.Logger

	mu  sync.RWMutex
	k   *koanf.Koanf
	cfg Config
}

// Load reads defaults, the file at path (may be empty) and the environment.
func Load(path string, log zerolog.Logger) (*Store, error) {
	k, cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, log: log, k: k, cfg: cfg}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// LessonParams overlays lessons.<name> onto into, which already holds the
// lesson's defaults. Names are matched lower-cased ("01_led").
func (s *Store) LessonParams(name string, into any) error {
	key := lessonsKey + "." + strings.ToLower(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.k.Exists(key) {
		return nil
	}
	if err := s.k.UnmarshalWithConf(key, into, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return nil
}

// CheckLesson overlays lessons.<name> onto defaults, a pointer to the
// lesson's default params, and rejects the result if one GPIO has two roles.
// A clash between an override and an untouched default is caught here.
func (s *Store) CheckLesson(name string, defaults any) error {
	if err := s.LessonParams(name, defaults); err != nil {
		return err
	}
	return checkPins("lessons."+strings.ToLower(name), defaults)
}

// Publish puts each section on config/<section> as a retained message.
func (s *Store) Publish(conn *bus.Connection) {
	c := s.Config()
	for key, v := range map[string]any{
		"log":       c.Log,
		"board":     c.Board,
		"hal":       c.HAL,
		"status":    c.Status,
		"journal":   c.Journal,
		"heartbeat": c.Heartbeat,
	} {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, key), v, true))
	}
}

// Watch reloads the file whenever it changes until ctx ends. A reload that
// fails to parse or validate is logged and the previous config kept; a good
// one is stored, republished on conn (if non-nil) and passed to onChange.
func (s *Store) Watch(ctx context.Context, conn *bus.Connection, onChange func(old, cur Config)) error {
	if s.path == "" {
		return nil
	}
	fp := file.Provider(s.path)
	err := fp.Watch(func(_ any, err error) {
		if err != nil {
			s.log.Warn().Err(err).Msg("config watch")
			return
		}
		k, cfg, err := load(s.path)
		if err != nil {
			s.log.Warn().Err(err).Str("path", s.path).Msg("config reload rejected")
			return
		}
		s.mu.Lock()
		old := s.cfg
		s.k, s.cfg = k, cfg
		s.mu.Unlock()
		s.log.Info().Str("path", s.path).Msg("config reloaded")
		if conn != nil {
			s.Publish(conn)
		}
		if onChange != nil {
			onChange(old, cfg)
		}
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	go func() {
		<-ctx.Done()
		_ = fp.Unwatch()
	}()
	return nil
}

// TopicSection is the retained topic for one config section.
func TopicSection(key string) bus.Topic { return bus.T(configPrefix, key) }
