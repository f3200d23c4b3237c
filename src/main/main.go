package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"snapmark/src/capture"
	"snapmark/src/clipboard"
	"snapmark/src/config"
	"snapmark/src/control"
	"snapmark/src/eventloop"
	"snapmark/src/logutil"
	"snapmark/src/notification"
	"snapmark/src/overlay"
	"snapmark/src/panels"
	"snapmark/src/tray"
)

type mainOptions struct {
	full   bool
	cancel bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"snapmark"}
	}

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapmark",
		Short:         "Screenshot capture with notes and annotations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().BoolVar(&opts.full, "full", false, "Ask the resident instance for a full-display capture")
	cmd.Flags().BoolVar(&opts.cancel, "cancel", false, "Cancel the resident instance's active session")
	cmd.MarkFlagsMutuallyExclusive("full", "cancel")

	return cmd
}

// normalizeLegacyArgs maps single-dash long flags (-full, -cancel) to
// the double-dash form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 1; i < len(out); i++ {
		arg := out[i]
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		if len(name) > 1 {
			out[i] = "-" + arg
		}
	}
	return out
}

func runWithOptions(opts mainOptions) error {
	if opts.full || opts.cancel {
		// Load .env early so SNAPMARK_PORT_* apply to the scan.
		_, _ = config.Load()
		verb := control.VerbFull
		if opts.cancel {
			verb = control.VerbCancel
		}
		return delegate(verb)
	}
	return runResident()
}

func delegate(verb control.Verb) error {
	ctx := context.Background()
	delivered, err := control.NewClient().Send(ctx, verb)
	if err != nil {
		return err
	}
	if !delivered {
		start, end := control.PortRange()
		return fmt.Errorf("no resident instance found on ports %d-%d", start, end)
	}
	return nil
}

func runResident() error {
	// DPI awareness must be set before any window or metrics query.
	enableDPIAwareness()

	// The UI toolkit owns the main thread.
	runtime.LockOSThread()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logutil.Setup(cfg.EnableFileLogging)
	logPlatformDetails()

	if err := clipboard.Init(); err != nil {
		notification.ShowBlockingError("Clipboard unavailable",
			fmt.Sprintf("Startup check failed: %v", err))
		return fmt.Errorf("initialize clipboard: %w", err)
	}

	log.Printf("Snapmark starting")
	log.Printf("Save dir: %s", cfg.SaveDir)
	log.Printf("Hotkey: %s", cfg.Hotkey)

	coord := capture.New(overlay.NewSelector(), nil)
	panelSet := panels.NewSet()
	loop := eventloop.New(cfg, coord, panelSet, clipboard.Sink{})
	loop.SetDefaultTooltip(fmt.Sprintf("Snapmark - %s to capture", cfg.Hotkey))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tray.Run(tray.Callbacks{
		OnCaptureArea: loop.TriggerAreaCapture,
		OnCaptureFull: loop.TriggerFullCapture,
		OnQuit:        cancel,
	})
	defer tray.Quit()

	loop.StartHotkeys()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		panelSet.Stop()
		errCh <- err
	}()

	panelSet.Run()
	cancel()

	if err := <-errCh; err != nil && ctx.Err() == nil {
		return fmt.Errorf("event loop stopped: %w", err)
	}
	return nil
}
