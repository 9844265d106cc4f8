package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "isocanvas",
	Short: "Isometric pixeloid canvas",
	Long: `A desktop shell and offline tools for isometric pixeloid scenes.

Examples:
  isocanvas play                              # Open an empty canvas window
  isocanvas play --sample                     # Open the sample scene
  isocanvas play scene.yaml --save scene.yaml # Edit a scene file
  isocanvas render scene.json -o scene.png    # Rasterize a scene file
  isocanvas hash-passphrase                   # Print EDIT_PASSPHRASE_HASH`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

