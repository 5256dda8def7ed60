package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/harveysanders/splitflap/command"
	"github.com/harveysanders/splitflap/config"
	"github.com/harveysanders/splitflap/device"
	"github.com/harveysanders/splitflap/display"
	"github.com/harveysanders/splitflap/splitflapd/console"
)

const previewID = "preview"

type renderFlags struct {
	modules int
	rows    int
	plain   bool
}

func newRenderCmd(g *globals) *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render TEXT [key=value...]",
		Short: "Play text on a terminal preview of a display",
		Long: "Lays out TEXT the way serve would and plays the pages in the terminal.\n" +
			"TEXT \"-\" reads standard input. Options use the command directive syntax,\n" +
			"e.g. overflow=hyphen center=on delay=2 repeat=1. The blank timer is off\n" +
			"unless set.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			raw := args[0]
			if raw == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = strings.TrimRight(string(b), "\n")
			}
			blank := 0
			ov := config.Overrides{BlankTimer: &blank}
			given, err := command.ParseDirective(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			ov = ov.Merge(given)

			d := config.Device{ID: previewID, Topic: previewID, ModulesPerRow: f.modules, RowsPerPage: f.rows}.WithDefaults()
			if err := d.Validate(); err != nil {
				return err
			}
			defaults, err := cfg.DefaultOptions()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !f.plain && isTerminal(out) {
				return renderScreen(cmd.Context(), d, defaults, raw, ov)
			}
			return render(cmd.Context(), &console.Printer{W: out, ModulesPerRow: d.ModulesPerRow}, d, defaults, raw, ov)
		},
	}
	cmd.Flags().IntVar(&f.modules, "modules", config.DefaultModulesPerRow, "modules per row")
	cmd.Flags().IntVar(&f.rows, "rows", config.DefaultRowsPerPage, "rows per page")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "print frames as text even on a terminal")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// render plays raw on sink and returns once playback is idle.
func render(ctx context.Context, sink display.Sink, d config.Device, defaults config.Options, raw string, ov config.Overrides) error {
	coord := device.New(device.Options{Sink: sink, Defaults: defaults})
	defer coord.Close()
	if err := coord.AddDevice(ctx, d); err != nil {
		return err
	}
	if err := coord.SubmitText(ctx, d.ID, raw, ov); err != nil {
		return err
	}
	return coord.Wait(ctx, d.ID)
}

// renderScreen plays raw on a full-screen preview and keeps the last frame
// up until a key is pressed.
func renderScreen(ctx context.Context, d config.Device, defaults config.Options, raw string, ov config.Overrides) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("opening terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("opening terminal: %w", err)
	}
	defer screen.Fini()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// The screen holds the terminal in raw mode: quit keys arrive as events.
	keys := make(chan struct{})
	go func() {
		defer close(keys)
		for {
			switch ev := screen.PollEvent().(type) {
			case nil:
				return
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyCtrlC || ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
					cancel()
					return
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		}
	}()

	err = render(ctx, console.NewPreview(screen, d.ModulesPerRow, d.RowsPerPage), d, defaults, raw, ov)
	if err != nil && ctx.Err() == nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-keys:
	}
	return nil
}
