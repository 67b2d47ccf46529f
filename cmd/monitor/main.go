// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/enviro_monitor/internal/config"
	"github.com/relabs-tech/enviro_monitor/internal/display"
	"github.com/relabs-tech/enviro_monitor/internal/monitor"
	"github.com/relabs-tech/enviro_monitor/internal/sensors"
	"github.com/relabs-tech/enviro_monitor/internal/sink"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (empty: environment only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting environmental monitor", zap.String("name", cfg.Name))

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open(cfg.Hardware.I2CBus)
	if err != nil {
		return fmt.Errorf("i2c open: %w", err)
	}
	defer bus.Close()

	loopSensors, closeSensors, err := buildSensors(cfg, bus)
	if err != nil {
		return err
	}
	defer closeSensors()

	sinks, closeSinks, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	loop := &monitor.Loop{
		Logger:     logger,
		Sensors:    loopSensors,
		Options:    cfg.CompensateOptions(),
		Dispatcher: sink.NewDispatcher(logger, sinks...),
		PerMinute:  cfg.MeasurementsPerMinute,
	}
	if !cfg.InstantStart {
		loop.AlignMinutes = cfg.StartAtMultipleOf
	}

	if cfg.Display.Enabled {
		dev, err := display.NewST7735(cfg.Display.SPIPort, cfg.Display.DCPin, cfg.Display.BacklightPin)
		if err != nil {
			return fmt.Errorf("display init: %w", err)
		}
		loop.Device = dev
		loop.Renderer = display.NewRenderer(cfg.Name, dev.Bounds())
		loop.Scenes = display.NewSceneState(display.SceneCount, cfg.Display.ProximityThreshold)
	}
	defer loop.Shutdown()

	if cfg.StatusAddr != "" {
		status := monitor.NewStatus()
		loop.Status = status
		go func() {
			if err := status.Serve(logger, cfg.StatusAddr); err != nil {
				logger.Error("status endpoint failed", zap.Error(err))
			}
		}()
	}

	if cfg.ConfirmStart {
		if err := confirmStart(os.Stdin); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = loop.Run(ctx)
	logger.Info("shutting down")
	return err
}

// buildSensors opens the sensor groups the enabled measurements need. A
// group nobody measures is never touched.
func buildSensors(cfg *config.Config, bus i2c.Bus) (monitor.Sensors, func(), error) {
	var s monitor.Sensors
	var closers []func() error

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	m := cfg.Measure
	if m.Temperature || m.Humidity || m.Pressure {
		bme, err := sensors.NewBME280(bus, cfg.Hardware.BME280Addr)
		if err != nil {
			return s, nil, fmt.Errorf("climate sensor: %w", err)
		}
		s.Climate = bme
		closers = append(closers, bme.Halt)
	}

	if m.PM25 || m.PM10 {
		pms, err := sensors.NewPMS5003(cfg.Hardware.PMSDevice, cfg.Hardware.PMSEnablePin)
		if err != nil {
			closeAll()
			return s, nil, fmt.Errorf("particulate sensor: %w", err)
		}
		s.Particulate = pms
		closers = append(closers, pms.Close)
	}

	if m.Gases {
		gas, err := sensors.NewMICS6814(bus)
		if err != nil {
			closeAll()
			return s, nil, fmt.Errorf("gas sensor: %w", err)
		}
		s.Gas = gas
		closers = append(closers, gas.Halt)
	}

	if cfg.Display.Enabled {
		ltr, err := sensors.NewLTR559(bus)
		if err != nil {
			closeAll()
			return s, nil, fmt.Errorf("proximity sensor: %w", err)
		}
		s.Proximity = ltr
	}

	if cfg.Compensation.Enabled || m.CPUTemperature {
		s.CPU = sensors.NewCPUTemp()
	}

	return s, closeAll, nil
}

func buildSinks(cfg *config.Config, logger *zap.Logger) ([]sink.Sink, func(), error) {
	var sinks []sink.Sink
	var closers []func() error

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Store.Enabled {
		cols := make([]sink.Column, 0, 9)
		for _, name := range cfg.CompensateOptions().Columns() {
			cols = append(cols, sink.Column{Name: name, Type: "REAL"})
		}
		store, err := sink.NewSQLite(logger, cfg.Store.Path, cols, time.Now())
		if err != nil {
			return nil, nil, fmt.Errorf("local store: %w", err)
		}
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
	}

	if cfg.Luftdaten.Enabled {
		id, err := sensors.DeviceID()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("luftdaten sink: %w", err)
		}
		sinks = append(sinks, sink.NewLuftdaten(logger, cfg.Luftdaten.URL, id,
			cfg.Luftdaten.SoftwareVersion, time.Duration(cfg.Luftdaten.TimeoutSeconds)*time.Second))
	}

	if cfg.MQTT.Enabled {
		mq, err := sink.NewMQTT(logger, cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic,
			time.Duration(cfg.MQTT.TimeoutSeconds)*time.Second)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mqtt sink: %w", err)
		}
		sinks = append(sinks, mq)
		closers = append(closers, mq.Close)
	}

	return sinks, closeAll, nil
}

func confirmStart(in io.Reader) error {
	fmt.Print("press enter to start sampling: ")
	if _, err := bufio.NewReader(in).ReadString('\n'); err != nil {
		return fmt.Errorf("start confirmation: %w", err)
	}
	return nil
}
