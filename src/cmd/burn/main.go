// Command burn applies a caption bar to an image file from the command
// line, using the same compositor as the interactive app. Useful for
// scripting and for reproducing wrap output outside the UI.
package main

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"snapmark/src/caption"
)

const (
	maxFileSizeMB = 32
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type burnOptions struct {
	filePath   string
	text       string
	outPath    string
	quality    int
	maxWidth   int
	jsonOutput bool
	verbose    bool
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
		args = []string{"snapmark-burn"}
	}

	opts := &burnOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *burnOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapmark-burn",
		Short:         "Burn a caption bar onto an image file",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to JPEG or PNG file")
	cmd.Flags().StringVar(&opts.text, "text", "", "Caption text to burn")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "Output path (default: replace the input file)")
	cmd.Flags().IntVar(&opts.quality, "quality", 85, "JPEG quality, 10-100")
	cmd.Flags().IntVar(&opts.maxWidth, "max-width", 0, "Downscale wider images to this pixel width first (0 = keep)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output result as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to the double-dash
// form cobra expects.
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

type burnResult struct {
	File   string `json:"file"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func runWithOptions(opts burnOptions) error {
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}

	info, err := os.Stat(opts.filePath)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if info.Size() > maxFileSize {
		return fmt.Errorf("input exceeds %d MB", maxFileSizeMB)
	}

	out := opts.outPath
	if out == "" {
		out = opts.filePath
	}

	f, err := os.Open(opts.filePath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	log.Printf("decoded %s (%dx%d)", opts.filePath, src.Bounds().Dx(), src.Bounds().Dy())

	src = caption.ResizeToMaxWidth(src, opts.maxWidth)
	composed, err := caption.Compose(src, opts.text)
	if err != nil {
		return fmt.Errorf("compose caption: %w", err)
	}
	if err := caption.WriteImage(out, composed, caption.Options{Quality: opts.quality}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	res := burnResult{
		File:   out,
		Width:  composed.Bounds().Dx(),
		Height: composed.Bounds().Dy(),
	}
	if opts.jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(res)
	}
	fmt.Printf("%s (%dx%d)\n", res.File, res.Width, res.Height)
	return nil
}
