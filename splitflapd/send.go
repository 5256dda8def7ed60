package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harveysanders/splitflap/command"
	"github.com/harveysanders/splitflap/config"
	"github.com/harveysanders/splitflap/splitflapd/mqtt"
)

func newSendCmd(g *globals) *cobra.Command {
	var deviceID string
	cmd := &cobra.Command{
		Use:   "send TEXT [key=value...]",
		Short: "Publish text to a device's command topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ov, err := command.ParseDirective(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			payload, err := command.Encode(command.Command{Text: args[0], Overrides: ov})
			if err != nil {
				return err
			}
			d := findDevice(cfg.Devices, deviceID)

			client := &mqtt.Client{
				ID:       cfg.MQTT.ClientID + "-send",
				Timeout:  cfg.MQTT.Timeout.Duration,
				Username: cfg.MQTT.Username,
				Password: cfg.MQTT.Password,
				Logger:   logger,
			}
			ctx := cmd.Context()
			if err := client.Connect(ctx, cfg.MQTT.Addr); err != nil {
				return err
			}
			defer client.Close()
			if err := client.Publish(ctx, d.CommandTopic, payload, false); err != nil {
				return err
			}
			logger.Info("send:published", slog.String("device", d.ID), slog.String("topic", d.CommandTopic))
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", d.CommandTopic)
			return nil
		},
	}
	cmd.Flags().StringVarP(&deviceID, "device", "d", "", "device id (default: the first configured device)")
	return cmd
}

// findDevice returns the configured device id. An unknown id is taken to
// be a device using the default topic layout; an empty id picks the first
// device.
func findDevice(devices []config.Device, id string) config.Device {
	for _, d := range devices {
		if d.ID == id || id == "" {
			return d
		}
	}
	return config.Device{ID: id}.WithDefaults()
}
