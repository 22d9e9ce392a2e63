package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hpackcodec/internal/hpack"
	"hpackcodec/internal/logging"
)

const (
	DefaultMaxTableSize = 4096
	DefaultMaxFrameSize = 16384
	maxFrameSizeLimit   = 1<<24 - 1

	// DefaultMaxStringLength bounds what a decoder buffers for one literal.
	DefaultMaxStringLength = 64 << 10

	DefaultSessionTTL = 30 * time.Minute
)

type CodecConfig struct {
	MaxTableSize    uint32 `yaml:"max_table_size"`
	MaxStringLength int    `yaml:"max_string_length"`
	Huffman         string `yaml:"huffman"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// H2CPort serves cleartext HTTP/2 header echo connections; 0 disables it.
	H2CPort int `yaml:"h2c_port"`
	// SessionTTL is how long an unused codec session is kept; 0 keeps them forever.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type HTTP2Config struct {
	MaxFrameSize uint32 `yaml:"max_frame_size"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	Codec  CodecConfig  `yaml:"codec"`
	Server ServerConfig `yaml:"server"`
	HTTP2  HTTP2Config  `yaml:"http2"`
	Logger LoggerConfig `yaml:"logger"`
}

func Default() *Config {
	return &Config{
		Codec: CodecConfig{
			MaxTableSize:    DefaultMaxTableSize,
			MaxStringLength: DefaultMaxStringLength,
			Huffman:         hpack.HuffmanAlways.String(),
		},
		Server: ServerConfig{Port: 8080, SessionTTL: DefaultSessionTTL},
		HTTP2:  HTTP2Config{MaxFrameSize: DefaultMaxFrameSize},
		Logger: LoggerConfig{Level: string(logging.LogLevelInfo)},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if c.Server.H2CPort < 0 || c.Server.H2CPort > 65535 || (c.Server.H2CPort != 0 && c.Server.H2CPort == c.Server.Port) {
		return fmt.Errorf("server h2c port %d is invalid", c.Server.H2CPort)
	}
	if c.Codec.MaxStringLength < 0 {
		return fmt.Errorf("codec max string length %d is negative", c.Codec.MaxStringLength)
	}
	if c.Server.SessionTTL < 0 {
		return fmt.Errorf("server session ttl %s is negative", c.Server.SessionTTL)
	}
	if _, err := hpack.ParseHuffmanChoice(c.Codec.Huffman); err != nil {
		return err
	}
	if c.HTTP2.MaxFrameSize < DefaultMaxFrameSize || c.HTTP2.MaxFrameSize > maxFrameSizeLimit {
		return fmt.Errorf("http2 max frame size %d is out of range", c.HTTP2.MaxFrameSize)
	}
	if c.Logger.Level == "" {
		return errors.New("logger level is not set")
	}
	if _, err := logging.ParseLevel(c.Logger.Level); err != nil {
		return err
	}
	return nil
}

func (c *Config) HuffmanChoice() hpack.HuffmanChoice {
	choice, _ := hpack.ParseHuffmanChoice(c.Codec.Huffman)
	return choice
}

func (c *Config) LogLevel() logging.LogLevel {
	level, _ := logging.ParseLevel(c.Logger.Level)
	return level
}

// LoadConfig reads a YAML file on top of Default, so a file only needs the
// keys it changes.
func LoadConfig(configFileName string) (*Config, error) {
	data, err := os.ReadFile(configFileName)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFileName, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
