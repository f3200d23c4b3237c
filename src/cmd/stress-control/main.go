// Command stress-control hammers a resident instance's control channel
// with concurrent commands to verify that the singleton-session gate
// holds up: at most one command wins, the rest are refused cleanly.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"snapmark/src/control"
)

type stressOptions struct {
	n        int
	verb     string
	deadline time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-control",
		Short:         "Stress test the resident control channel",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of concurrent clients")
	cmd.Flags().StringVar(&opts.verb, "verb", "cancel", "cancel|full: command to send")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func parseVerb(s string) (control.Verb, error) {
	switch strings.ToLower(s) {
	case "cancel":
		return control.VerbCancel, nil
	case "full":
		return control.VerbFull, nil
	}
	return "", fmt.Errorf("unknown verb %q", s)
}

func runWithOptions(opts stressOptions) error {
	verb, err := parseVerb(opts.verb)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var okCount, refusedCount, missCount, errCount int32

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delivered, err := control.NewClient().Send(ctx, verb)
			switch {
			case err != nil && strings.Contains(err.Error(), "refused"):
				atomic.AddInt32(&refusedCount, 1)
			case err != nil:
				atomic.AddInt32(&errCount, 1)
			case !delivered:
				atomic.AddInt32(&missCount, 1)
			default:
				atomic.AddInt32(&okCount, 1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	fmt.Fprintf(os.Stdout, "launched=%d ok=%d refused=%d no-resident=%d err=%d elapsed=%s\n",
		opts.n, okCount, refusedCount, missCount, errCount, elapsed)
	return nil
}
