package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"codepack/pkg/logging"
	"codepack/pkg/packager"
)

var (
	outputFile  string
	format      string
	maxFileSize int64
	batchBudget int
	workers     int
	countTokens bool
	verbosity   int
	logFile     string
)

// RootCmd is the base command: it packages a project directory into one or
// more JSON/XML documents for model consumption.
var RootCmd = &cobra.Command{
	Use:   "codepack [project_dir]",
	Short: "Package a project directory into model-sized JSON or XML documents",
	Long: `codepack scans a project directory, filters it against git ignore rules,
extracts file contents and metadata, and writes one or more structured
documents sized for a large language model's context window. Output is
split into .partN files when a single document would be too large.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.Setup(verbosity, viper.GetString("log_file"))
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logging.SafeSync(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		projectDir := "."
		if len(args) > 0 {
			projectDir = args[0]
		}

		cfg := packager.Config{
			Root:        projectDir,
			Output:      viper.GetString("output"),
			Format:      viper.GetString("format"),
			MaxFileSize: viper.GetInt64("max_file_size"),
			BatchBudget: viper.GetInt("batch_size"),
			Workers:     viper.GetInt("workers"),
			CountTokens: viper.GetBool("count_tokens"),
		}

		if err := packager.Run(ctx, cfg, logger); err != nil {
			logger.Error("packaging failed", zap.Error(err))
			return err
		}
		return nil
	},
}

// Execute runs the root command. Errors have already been logged; the caller
// only needs the exit status.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.Flags()
	flags.StringVarP(&outputFile, "output", "o", "", "output file name (default depends on --format)")
	flags.StringVar(&format, "format", packager.FormatJSON, "output format: json or xml")
	flags.Int64Var(&maxFileSize, "max-file-size", packager.DefaultMaxFileSize, "maximum size of individual files to include (bytes)")
	flags.IntVar(&batchBudget, "batch-size", packager.DefaultBatchBudget, "serialized size budget per output document (bytes)")
	flags.IntVar(&workers, "workers", 0, "number of concurrent file readers (0 for auto)")
	flags.BoolVar(&countTokens, "count-tokens", false, "annotate text files with model token counts")
	flags.CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v debug, -vv trace)")
	flags.StringVar(&logFile, "log-file", "", "write detailed logs to the specified file")

	viper.BindPFlag("output", flags.Lookup("output"))
	viper.BindPFlag("format", flags.Lookup("format"))
	viper.BindPFlag("max_file_size", flags.Lookup("max-file-size"))
	viper.BindPFlag("batch_size", flags.Lookup("batch-size"))
	viper.BindPFlag("workers", flags.Lookup("workers"))
	viper.BindPFlag("count_tokens", flags.Lookup("count-tokens"))
	viper.BindPFlag("log_file", flags.Lookup("log-file"))
}

// initConfig layers an optional config file and CODEPACK_* environment
// variables under the flag values: defaults < config file < env < flags.
func initConfig() {
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "codepack"))
	}
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.SetEnvPrefix("CODEPACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}
