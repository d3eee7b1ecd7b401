package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Serial   SerialConfig `mapstructure:"serial"`
	Meter    MeterConfig  `mapstructure:"meter"`
	MQTT     MQTTConfig   `mapstructure:"mqtt"`

	ResolutionConfig ResolutionConfig `mapstructure:"resolution"`
	Port             uint             `mapstructure:"port"`
	HttpLog          bool             `mapstructure:"http_log"`
}

type SerialConfig struct {
	Device        string
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
	Mock          bool
}

type MeterConfig struct {
	// RegisterMapFile points at the declarative register map JSON;
	// RegisterMap may carry the same document inline and wins when set.
	RegisterMapFile    string `mapstructure:"register_map_file"`
	RegisterMap        string `mapstructure:"register_map"`
	TickIntervalMillis uint32 `mapstructure:"tick_interval_millis"`
}

// ResolutionConfig holds the per-quantity decimal settings user registers
// can reference symbolically.
type ResolutionConfig struct {
	Voltage     uint8
	Current     uint8
	Power       uint8
	Energy      uint8
	Frequency   uint8
	Temperature uint8
	Humidity    uint8
	Pressure    uint8
	Weight      uint8
	Default     uint8
}

type MQTTConfig struct {
	Enable           bool
	Host             string
	Port             int
	Username         string
	Password         string
	BaseTopic        string `mapstructure:"base_topic"`
	HADiscoveryTopic string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
