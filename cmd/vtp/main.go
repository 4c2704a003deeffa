package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/yimiw/video-to-ppt/internal/config"
	"github.com/yimiw/video-to-ppt/internal/logging"
	"github.com/yimiw/video-to-ppt/internal/pipeline"
)

var version = "dev"

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vtp",
	Short: "vtp - turn a video into a slide document",
	Long:  "Converts a video into a minimal de-duplicated set of representative still frames and exports them as a PDF document.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

var (
	outputPath    string
	stepSeconds   float64
	threshold     float64
	maxFrames     int
	declaredType  string
	keepFramesDir string
	skipNormalize bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [input video]",
	Short: "Extract keyframes from a video and export them as a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}

		bar := progressbar.NewOptions(100,
			progressbar.OptionSetDescription("starting"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
		)

		opts := pipeline.Options{
			DeclaredType:  declaredType,
			Threshold:     threshold,
			StepSeconds:   stepSeconds,
			MaxFrames:     maxFrames,
			OutputPDF:     outputPath,
			KeepFramesDir: keepFramesDir,
			SkipNormalize: skipNormalize,
			OnProgress: func(stage string, pct int) {
				bar.Describe(stage)
				_ = bar.Set(pct)
			},
		}

		result, err := pipe.Run(cmd.Context(), args[0], opts)
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}

		logger := logging.WithComponent("cli")
		logger.Info().
			Int("slides", len(result.Frames)).
			Float64("threshold", result.Threshold).
			Str("output", result.PDFPath).
			Dur("elapsed", result.Elapsed).
			Msg("conversion finished")

		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [input video]",
	Short: "Print video metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}

		info, err := pipe.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("file:      %s\n", info.FilePath)
		fmt.Printf("container: %s\n", info.FormatName)
		fmt.Printf("duration:  %v\n", info.Duration)
		fmt.Printf("video:     %s %dx%d @ %.2f fps\n", info.VideoCodec, info.Width, info.Height, info.FPS)
		if info.HasAudio {
			fmt.Printf("audio:     %s\n", info.AudioCodec)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vtp %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	convertCmd.Flags().StringVarP(&outputPath, "output", "o", "slides.pdf", "output PDF path")
	convertCmd.Flags().Float64Var(&stepSeconds, "step", 0, "sampling step in seconds (0 = config default)")
	convertCmd.Flags().Float64Var(&threshold, "threshold", 0, "manual capture threshold (0 = auto-calibrate)")
	convertCmd.Flags().IntVar(&maxFrames, "max-frames", 0, "maximum captured frames (0 = config default)")
	convertCmd.Flags().StringVar(&declaredType, "type", "", "input type hint (extension or MIME type)")
	convertCmd.Flags().StringVar(&keepFramesDir, "keep-frames", "", "also write captured JPEGs into this directory")
	convertCmd.Flags().BoolVar(&skipNormalize, "no-normalize", false, "skip input normalization")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)
}
