package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/classtrack/domain"
	"github.com/fastygo/classtrack/internal/infrastructure/boltdb"
	boltRepo "github.com/fastygo/classtrack/repository/bolt"
)

var catalogCmd = &cobra.Command{
	Use:   "import-catalog <tasks.json>",
	Short: "Load a task catalog snapshot into the bolt store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, zapLogger, err := bootstrap()
		if err != nil {
			return err
		}
		defer zapLogger.Sync()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var tasks []domain.Task
		if err := json.Unmarshal(raw, &tasks); err != nil {
			return fmt.Errorf("decode %s: %w", args[0], err)
		}

		db, err := boltdb.Open(cfg.Store.BoltPath, boltRepo.Buckets...)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := boltRepo.NewCatalogRepository(db).Import(cmd.Context(), tasks...); err != nil {
			return err
		}
		total, err := boltdb.Size(db, boltRepo.BucketTasks)
		if err != nil {
			return err
		}
		zapLogger.Info("catalog imported", zap.Int("imported", len(tasks)), zap.Int("total", total))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
