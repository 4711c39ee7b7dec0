package commands

import (
	"io"

	"github.com/spf13/cobra"

	"go-food-analyzer/internal/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "food-analyzer",
	Short: "Analyze food photos with a vision model and OCR",
	Long: `food-analyzer runs the same pipeline as the HTTP service on a local file:
the image goes to the vision model and to Tesseract in parallel and the
results are merged into one JSON document.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel("debug")
			logger.SetOutput(cmd.ErrOrStderr())
			return
		}
		logger.SetOutput(io.Discard)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
