// Command splitflapd drives split-flap displays over MQTT.
//
//	splitflapd serve --config splitflap.toml
//	splitflapd render --modules 12 --rows 3 "Next train\ 4 min"
//	splitflapd send --device lobby "Hello world" delay=3
//	splitflapd options lobby overflow=hyphen center=on
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/harveysanders/splitflap/config"
)

type globals struct {
	configPath string
	logLevel   string
}

// load reads the config file and builds the logger it asks for. An explicit
// --log-level wins over the file.
func (g *globals) load(stderr io.Writer) (config.File, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "splitflapd",
		Short:         "Lay out text for split-flap displays and play it over MQTT",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", os.Getenv("SPLITFLAP_CONFIG"), "path to the TOML config file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(g),
		newRenderCmd(g),
		newSendCmd(g),
		newOptionsCmd(g),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
