package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/trafficgrid/core/factory"
	"github.com/kilianp07/trafficgrid/infra/logger"
	"github.com/kilianp07/trafficgrid/infra/mqtt"
	"github.com/kilianp07/trafficgrid/simulator"
)

var trafficsimInterval time.Duration

var trafficsimCmd = &cobra.Command{
	Use:   "trafficsim",
	Short: "Serve the synthetic traffic generator over MQTT",
	RunE:  trafficsim,
}

func init() {
	trafficsimCmd.Flags().DurationVar(&trafficsimInterval, "interval", time.Second, "time between snapshots")
	rootCmd.AddCommand(trafficsimCmd)
}

func trafficsim(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("trafficsim needs mqtt.broker")
	}
	var simCfg simulator.Config
	if cfg.Traffic.Type == "synthetic" {
		if err := factory.Decode(cfg.Traffic.Conf, &simCfg); err != nil {
			return err
		}
	}
	if simCfg.Seed == 0 {
		simCfg.Seed = cfg.Simulation.Seed
	}
	src, err := simulator.NewSource(simCfg)
	if err != nil {
		return err
	}

	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("%s-sim-%d", mqttCfg.ClientID, time.Now().UnixNano())
	client, err := mqtt.NewPahoClient(mqttCfg)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer client.Disconnect()

	bridge := simulator.NewBridge(src, client, mqttCfg.TopicPrefix, logger.New("trafficsim"))
	if err := bridge.Start(ctx); err != nil {
		return err
	}
	return bridge.Run(ctx, trafficsimInterval)
}
