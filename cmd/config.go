package main

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	BadgerFilepath      string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath       string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel            string        `env:"LOG_LEVEL,default=INFO"`
	GinMode             string        `env:"GIN_MODE,default=release"`
	Host                string        `env:"HOST,default=localhost"`
	Port                int           `env:"PORT,default=5000"`
	GrpcPort            int           `env:"GRPC_PORT,default=5001"`
	InactivityThreshold time.Duration `env:"INACTIVITY_THRESHOLD,default=10s"`
	TickInterval        time.Duration `env:"TICK_INTERVAL,default=15s"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	LimitMessages       *int          `env:"LIMIT_MESSAGES"`
	CensoredWords       string        `env:"CENSORED_WORDS"`
	CharReplacement     string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

func (c Config) Validate() error {
	if c.InactivityThreshold <= 0 {
		return fmt.Errorf("INACTIVITY_THRESHOLD must be positive, got %s", c.InactivityThreshold)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval)
	}
	if c.LimitMessages != nil && *c.LimitMessages < 0 {
		return fmt.Errorf("LIMIT_MESSAGES must not be negative, got %d", *c.LimitMessages)
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

// Words splits CENSORED_WORDS on commas, dropping blanks.
func (c Config) Words() []string {
	var words []string
	for _, w := range strings.Split(c.CensoredWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
