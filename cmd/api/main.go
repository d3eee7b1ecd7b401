package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avilanova/metermux2mqtt/internal/config"
	"github.com/avilanova/metermux2mqtt/internal/events"
	"github.com/avilanova/metermux2mqtt/internal/measure"
	appmqtt "github.com/avilanova/metermux2mqtt/internal/mqtt"
	"github.com/avilanova/metermux2mqtt/internal/server"
	"github.com/avilanova/metermux2mqtt/pkg/meterbus"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/lmittmann/tint"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// pre-config logger
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.DateTime,
	})))

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// parse the register map. A broken map disables the whole bridge.
	schema, err := loadSchema(cfg, logger)
	if err != nil {
		logger.Error("register map rejected, meter polling disabled", zap.Error(err))
		return
	}

	// the transport is only created once a valid schema exists
	transport, err := transportFromConfig(cfg, schema, logger)
	if err != nil {
		logger.Error("transport init failed", zap.Error(err))
		return
	}

	store := measure.NewStore(cfg.ResolutionConfig)

	poller, err := meterbus.NewPoller(schema, transport, store, store, logger)
	if err != nil {
		logger.Error("poller init failed", zap.Error(err))
		return
	}

	// MQTT output
	if cfg.MQTT.Enable {
		publisher := startMQTT(cfg, schema, logger)
		store.OnScanCycle(func(snap measure.Snapshot) {
			publisher.PublishUpdates(events.SnapshotToUpdateEvents(schema, snap, store))
		})
	}

	// tick scheduler
	sched := quartz.NewStdScheduler()
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	sched.Start(schedCtx)

	tickJob := job.NewFunctionJob(func(_ context.Context) (int, error) {
		poller.Tick()
		return 0, nil
	})
	interval := time.Duration(cfg.Meter.TickIntervalMillis) * time.Millisecond
	err = sched.ScheduleJob(quartz.NewJobDetail(tickJob, quartz.NewJobKey("meter_poll")),
		quartz.NewSimpleTrigger(interval))
	if err != nil {
		logger.Error("scheduler init failed", zap.Error(err))
		return
	}

	caps := schema.Capabilities()
	logger.Info("meter polling started",
		zap.String("meter", schema.Name()),
		zap.Int("phases", schema.Phases()),
		zap.Int("devices", schema.DeviceCount()),
		zap.Int("registers", schema.RegisterCount()),
		zap.Int("dropped_users", schema.DroppedUsers()),
		zap.Bool("common_voltage", caps.CommonVoltage),
		zap.Bool("total_authoritative", caps.TotalAuthoritative),
		zap.Duration("tick", interval))

	apiServer := server.NewServer(*cfg, schema, poller, store)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, done)

	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	sched.Stop()
}

func initConfig() (*config.Config, error) {

	// alias PORT => METERMUX_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("METERMUX_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("metermux")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	if cfg.MQTT.Enable {
		baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic
	}

	// check bounds
	if cfg.Meter.TickIntervalMillis < 50 {
		return nil, errors.New("config param meter.tick_interval_millis should be >= 50")
	}
	if !cfg.Serial.Mock && cfg.Serial.Device == "" {
		return nil, errors.New("config param serial.device is required")
	}
	if cfg.Meter.RegisterMap == "" && cfg.Meter.RegisterMapFile == "" {
		return nil, errors.New("config param meter.register_map or meter.register_map_file is required")
	}

	return &cfg, nil
}

func loadSchema(cfg *config.Config, logger *zap.Logger) (*meterbus.Schema, error) {
	data := []byte(cfg.Meter.RegisterMap)
	if len(data) == 0 {
		var err error
		data, err = os.ReadFile(cfg.Meter.RegisterMapFile)
		if err != nil {
			return nil, fmt.Errorf("register map: %w", err)
		}
	}
	return meterbus.BuildSchema(data, logger)
}

func transportFromConfig(cfg *config.Config, schema *meterbus.Schema, logger *zap.Logger) (meterbus.Transport, error) {
	if cfg.Serial.Mock {
		logger.Warn("using mock transport, no serial device will be opened")
		return mockTransport(schema), nil
	}
	timeout := time.Duration(cfg.Serial.TimeoutMillis) * time.Millisecond
	return meterbus.NewRTUTransport(cfg.Serial.Device, schema.Bus(), timeout, logger)
}

// mockTransport scripts plausible values for every configured register so
// the bridge can be exercised without hardware.
func mockTransport(schema *meterbus.Schema) *meterbus.TestTransport {
	transport := meterbus.NewTestTransport()
	for i := 0; i < schema.RegisterCount(); i++ {
		entry := schema.Entry(i)
		for p := 0; p < meterbus.MaxPhases; p++ {
			if !entry.PhaseUsed(p) {
				continue
			}
			for _, dev := range schema.Bus().Devices {
				transport.SetValue(dev, entry.Address(p), float64(100+i)+float64(p)/10, entry.DataType())
			}
		}
	}
	return transport
}

func startMQTT(cfg *config.Config, schema *meterbus.Schema, logger *zap.Logger) *appmqtt.Publisher {
	var publisher *appmqtt.Publisher
	client := appmqtt.CreateMQTTClient(cfg, appmqtt.OptsFromConfig(cfg), func(_ pahomqtt.Client) {
		logger.Info("mqtt connected")
		publisher.PublishBridgeState(true)
		publisher.PublishDiscovery(events.SchemaToSensors(schema, cfg.MQTT.BaseTopic))
	}, func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})
	publisher = appmqtt.NewPublisher(client, cfg.MQTT.HADiscoveryTopic, logger)
	client.Connect(func(err error) {
		if err != nil {
			logger.Error("mqtt connect failed", zap.Error(err))
		}
	}, 10*time.Second)
	return publisher
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("serial.timeout_millis", 1000)
	viper.SetDefault("serial.mock", false)
	viper.SetDefault("meter.tick_interval_millis", 200)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.base_topic", "metermux")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("resolution.voltage", 1)
	viper.SetDefault("resolution.current", 3)
	viper.SetDefault("resolution.power", 1)
	viper.SetDefault("resolution.energy", 3)
	viper.SetDefault("resolution.frequency", 2)
	viper.SetDefault("resolution.temperature", 1)
	viper.SetDefault("resolution.humidity", 1)
	viper.SetDefault("resolution.pressure", 1)
	viper.SetDefault("resolution.weight", 3)
	viper.SetDefault("resolution.default", 2)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
