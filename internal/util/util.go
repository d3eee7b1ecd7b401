package util

import (
	"github.com/avilanova/metermux2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Serial: config.SerialConfig{
			Device:        "/dev/ttyUSB0",
			TimeoutMillis: 1000,
			Mock:          true,
		},
		Meter: config.MeterConfig{
			RegisterMap:        `{"Name":"SDM120","Baud":2400,"Address":1,"Function":4,"Voltage":0,"Current":6,"Total":342}`,
			TickIntervalMillis: 200,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "metermux",
			HADiscoveryTopic: "homeassistant",
		},
		ResolutionConfig: config.ResolutionConfig{
			Voltage: 1, Current: 3, Power: 1, Energy: 3, Frequency: 2,
			Temperature: 1, Humidity: 1, Pressure: 1, Weight: 3, Default: 2,
		},
		Port: 8080,
	}
}
