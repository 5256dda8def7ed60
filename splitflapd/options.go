package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harveysanders/splitflap/command"
	"github.com/harveysanders/splitflap/config"
	"github.com/harveysanders/splitflap/store"
)

func newOptionsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "options DEVICE [key=value...]",
		Short: "Show or change the options stored for a device",
		Long: "Without settings, prints the options DEVICE plays with. Settings are\n" +
			"merged into the stored options and take effect when serve next starts.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ov, err := command.ParseDirective(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := store.Open(ctx, cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			d, err := st.Device(ctx, args[0])
			switch {
			case errors.Is(err, store.ErrNotFound):
				d = findDevice(cfg.Devices, args[0])
				if err := st.SaveDevice(ctx, d); err != nil {
					return err
				}
			case err != nil:
				return err
			}

			if !ov.IsZero() {
				merged := d.Options.Merge(ov)
				if err := merged.Validate(); err != nil {
					return err
				}
				if err := st.SetOptions(ctx, d.ID, merged); err != nil {
					return err
				}
				d.Options = merged
			}

			defaults, err := cfg.DefaultOptions()
			if err != nil {
				return err
			}
			opts, err := config.Resolve(defaults, d.Options)
			if err != nil {
				return err
			}
			return printOptions(cmd.OutOrStdout(), d, opts)
		},
	}
}

func printOptions(w io.Writer, d config.Device, opts config.Options) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "device\t%s\n", d.ID)
	fmt.Fprintf(tw, "topic\t%s\n", d.Topic)
	fmt.Fprintf(tw, "command_topic\t%s\n", d.CommandTopic)
	fmt.Fprintf(tw, "size\t%d x %d\n", d.ModulesPerRow, d.RowsPerPage)
	fmt.Fprintf(tw, "overflow_type\t%s\n", config.OverflowName(opts.Overflow))
	fmt.Fprintf(tw, "center_text\t%t\n", opts.Center)
	fmt.Fprintf(tw, "delay_between_pages\t%s\n", opts.Delay)
	fmt.Fprintf(tw, "repeat_multipage_messages\t%d\n", opts.Repeat)
	fmt.Fprintf(tw, "blank_display_timer\t%s\n", opts.BlankAfter)
	return tw.Flush()
}
