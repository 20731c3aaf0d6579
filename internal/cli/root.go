package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/larose/tempblock/codec/tempblock"
	"github.com/larose/tempblock/config"
	"github.com/larose/tempblock/internal/logger"
	"github.com/larose/tempblock/store"
)

var (
	cfgFile     string
	cfg         *config.Config
	rootDir     string
	cpuProfile  string
	stopProfile func() error
)

var rootCmd = &cobra.Command{
	Use:   "tempblock",
	Short: "Build and query block-terms postings indexes",
	Long: `tempblock indexes JSONL articles ({"url","title","body"}) into segments
written with the TempBlock postings format, and looks terms up in them.

Example usage:
  tempblock index --input "data/**/*.jsonl"
  tempblock lookup --field body --term observatory
  tempblock terms --field title --prefix gri
  tempblock serve --addr :8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

		if cpuProfile != "" {
			stopProfile, err = startCpuProfiler(cpuProfile)
			if err != nil {
				return err
			}
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if stopProfile == nil {
			return nil
		}
		return stopProfile()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./tempblock.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
}

func indexDirectory() string {
	if filepath.IsAbs(cfg.Index.Directory) {
		return cfg.Index.Directory
	}
	return filepath.Join(rootDir, cfg.Index.Directory)
}

func postingsFormat() *tempblock.PostingsFormat {
	return tempblock.New(tempblock.WithTermIndexInterval(cfg.Index.TermIndexInterval))
}

// openDirectory returns the index directory, creating it when create is set.
func openDirectory(create bool) (*store.FSDirectory, error) {
	path := indexDirectory()

	if create {
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no index found at %s. Run 'tempblock index' first", path)
	}

	return store.NewFSDirectory(path), nil
}
