// Command imgio is a thin CLI over the dispatch library: list registered
// formats, inspect a resource, or convert between formats.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/imgio"
	_ "github.com/ironsheep/imgio/plugins/all"
)

// Version is set by ldflags during release builds.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "imgio",
		Short:         "image I/O dispatch tool",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log := logrus.New()
			log.SetOutput(os.Stderr)
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
			imgio.SetLogger(log)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging, including plugin probe traces")

	root.AddCommand(newFormatsCmd(), newInfoCmd(), newConvertCmd())
	return root
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "list registered plugins and extension priorities",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := imgio.DefaultRegistry()

			fmt.Fprintln(cmd.OutOrStdout(), "plugins (search order):")
			for _, p := range reg.Plugins() {
				contract := "modern"
				if p.IsLegacy() {
					contract = "legacy"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %-7s %s\n", p.Name, contract, p.Summary)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "\nextensions:")
			for _, e := range reg.Extensions() {
				fmt.Fprintf(cmd.OutOrStdout(), "  .%-6s -> %s", e.Extension, strings.Join(e.Priority, ", "))
				if e.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), " (%s)", e.Description)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	var plugin string

	cmd := &cobra.Command{
		Use:   "info FILE",
		Short: "print properties and metadata of an image resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := open(args[0], imgio.ModeRead, plugin)
			if err != nil {
				return err
			}
			defer backend.Close()

			props, err := backend.Properties(0)
			if err != nil {
				return err
			}
			meta, err := backend.Metadata(0, false)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"properties": props,
				"metadata":   meta,
			})
		},
	}
	cmd.Flags().StringVarP(&plugin, "plugin", "p", "", "force a specific plugin")
	return cmd
}

func newConvertCmd() *cobra.Command {
	var (
		plugin  string
		width   int
		height  int
		quality int
	)

	cmd := &cobra.Command{
		Use:   "convert SRC DST",
		Short: "read an image and re-encode it as DST's format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := open(args[0], imgio.ModeRead, plugin)
			if err != nil {
				return err
			}
			defer src.Close()

			im, err := src.Read(0, nil)
			if err != nil {
				return err
			}

			if width > 0 || height > 0 {
				im, err = resize(im, width, height)
				if err != nil {
					return err
				}
			}

			dst, err := imgio.Open(args[1], imgio.ModeWrite,
				imgio.WithLegacyOnly(false),
				imgio.WithOptions(imgio.Options{"quality": quality}))
			if err != nil {
				return err
			}
			defer dst.Close()

			_, err = dst.Write([]*imgio.NDImage{im}, nil)
			return err
		},
	}
	cmd.Flags().StringVarP(&plugin, "plugin", "p", "", "force a specific source plugin")
	cmd.Flags().IntVar(&width, "width", 0, "output width (0 keeps aspect from height)")
	cmd.Flags().IntVar(&height, "height", 0, "output height (0 keeps aspect from width)")
	cmd.Flags().IntVar(&quality, "quality", 90, "JPEG quality")
	return cmd
}

func open(resource string, mode imgio.Mode, plugin string) (imgio.Backend, error) {
	opts := []imgio.OpenOption{imgio.WithLegacyOnly(false)}
	if plugin != "" {
		opts = append(opts, imgio.WithPlugin(plugin))
	}
	return imgio.Open(resource, mode, opts...)
}

// resize scales through bild's catmull-rom resampler, deriving the missing
// dimension from the source aspect ratio.
func resize(im *imgio.NDImage, width, height int) (*imgio.NDImage, error) {
	img, err := im.Image()
	if err != nil {
		return nil, err
	}
	if width == 0 {
		width = im.Width() * height / im.Height()
	}
	if height == 0 {
		height = im.Height() * width / im.Width()
	}
	return imgio.FromImage(transform.Resize(img, width, height, transform.CatmullRom)), nil
}
