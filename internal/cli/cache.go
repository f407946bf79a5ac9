package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/verifact/internal/cache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the verdict cache",
	Long: `Manage the on-disk verdict cache (cache.dir).

Only verdicts produced by the model are cached; articles accepted because
the verification service failed are always re-checked.`,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired and unreadable cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		start := time.Now()
		removed, kept, err := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL).Prune()
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %s: %d removed, %d kept (%v)\n",
			cfg.Cache.Dir, removed, kept, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if err := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL).Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s\n", cfg.Cache.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
