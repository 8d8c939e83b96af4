package cli

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mgpai22/wordsync/internal/config"
	"github.com/mgpai22/wordsync/internal/logging"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wordsync",
	Short: "Word-level transcript highlighting synchronized with audio playback",
	Long: `Wordsync keeps a transcript in step with an audio recording, one word at a time.

Word timings come from a manual calibration pass, from a speech-to-text
provider, or from an existing subtitle file. Calibration documents can be
followed live, inspected, and exported as captions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warnw("Failed to load .env file", "error", err)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Debugw("Configuration loaded",
			"path", cfg.Path(),
			"backend", cfg.Player.Backend,
			"gap_policy", cfg.Sync.GapPolicy,
		)
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
}
