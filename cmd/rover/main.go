// Command rover wires the GNSS receiver, optional NTRIP corrections, the
// navigation state machine and the motor controller into one running
// process: the rover core entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"rovercore/internal/config"
	"rovercore/internal/gnss"
	"rovercore/internal/motor"
	"rovercore/internal/nav"
	"rovercore/internal/ntrip"
	"rovercore/internal/port"
	"rovercore/internal/rover"
	"rovercore/internal/rtk"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; env vars and defaults apply otherwise)")
	serialPort := flag.String("serial", "", "override the configured GNSS serial port")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logrus.NewEntry(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		entry.WithError(err).Fatal("invalid configuration")
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		entry.Info("received shutdown signal")
		cancel()
	}()

	adapter := gnss.NewAdapter(port.NewGNSSSerialPort(), entry)
	if err := adapter.Open(cfg.Serial.Port, cfg.Serial.BaudCandidates[0]); err != nil {
		entry.WithError(err).Fatal("failed to open gnss receiver")
	}

	var client *ntrip.Client
	if cfg.NTRIP.Enabled() {
		client = ntrip.NewClient(ntrip.Config{
			Host:       cfg.NTRIP.Host,
			Port:       cfg.NTRIP.Port,
			Mountpoint: cfg.NTRIP.Mountpoint,
			Username:   cfg.NTRIP.Username,
			Password:   cfg.NTRIP.Password,
			UseTLS:     cfg.NTRIP.TLS,
		}, entry)
	} else {
		entry.Warn("ntrip not configured, running gps-only")
	}

	rtkCoord := rtk.NewCoordinator(adapter, client, entry)
	if err := rtkCoord.Start(ctx); err != nil {
		entry.WithError(err).Fatal("failed to start rtk coordinator")
	}
	defer rtkCoord.Stop()

	navigator := nav.NewNavigator(entry)
	navigator.SetMaxSpeed(cfg.Navigation.MaxSpeed)

	driver := motor.NewSimulationDriver(entry)
	motorController := motor.NewController(driver, entry)
	motorController.SetMaxSpeed(cfg.Motor.MaxSpeed)
	motorController.SetTurnSensitivity(cfg.Motor.TurnSensitivity)
	motorController.SetRampRate(cfg.Motor.RampRate)

	roverCoord := rover.NewCoordinator(navigator, motorController, rtkCoord, entry)
	if err := roverCoord.Start(ctx); err != nil {
		entry.WithError(err).Fatal("failed to start rover coordinator")
	}
	defer roverCoord.Stop()

	entry.WithField("run_id", roverCoord.GetStatus().RunID).Info("rover running, press ctrl-c to stop")

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			entry.Info("shutting down")
			return
		case <-ticker.C:
			status := roverCoord.GetStatus()
			fmt.Fprintf(os.Stdout, "nav=%s phase=%s motor_running=%v emergency=%v\n",
				status.Navigation.Status, status.Navigation.Phase, status.Motor.Running, status.Motor.EmergencyStopped)
		}
	}
}
