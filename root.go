package main

import (
	"github.com/spf13/cobra"

	"vidshrink/config"
)

// rootOptions holds the raw flag values; only flags the user set override
// the configuration file.
type rootOptions struct {
	configPath   string
	inputDir     string
	outputDir    string
	audioReserve int
	logFile      string
	logLevel     string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "vidshrink",
		Short: "Compress a video to a target size",
		Long: `vidshrink lists the files in the input directory, asks which one to
compress, the desired size in megabytes and an x264 preset, then re-encodes
the file with ffmpeg into the output directory. The prompts repeat until
you press Ctrl+C.`,
		Example: `  vidshrink
  vidshrink --input ~/Videos/raw --output ~/Videos/small
  vidshrink -c vidshrink.toml --log-file vidshrink.log --log-level debug`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolveConfig(cmd)
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	bindRootFlags(rootCmd, opts)
	rootCmd.AddCommand(newPresetsCommand())

	return rootCmd
}

func bindRootFlags(cmd *cobra.Command, opts *rootOptions) {
	defaults := config.Default()
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (TOML)")
	flags.StringVar(&opts.inputDir, "input", defaults.InputDir, "Directory listing the files to compress")
	flags.StringVar(&opts.outputDir, "output", defaults.OutputDir, "Existing directory receiving the compressed files")
	flags.IntVar(&opts.audioReserve, "audio-reserve", defaults.AudioReserveKbps, "Kbit/s subtracted from the video bitrate for the audio track")
	flags.StringVar(&opts.logFile, "log-file", "", "Append logs to this file")
	flags.StringVar(&opts.logLevel, "log-level", defaults.Logging.Level, "Log level: debug, info, warn, error")
}

// resolveConfig loads the optional config file, applies the flags the
// user set and validates the result.
func (o *rootOptions) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputDir = o.inputDir
	}
	if flags.Changed("output") {
		cfg.OutputDir = o.outputDir
	}
	if flags.Changed("audio-reserve") {
		cfg.AudioReserveKbps = o.audioReserve
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = o.logFile
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
