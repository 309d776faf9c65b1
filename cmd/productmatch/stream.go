package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/productmatch/backend/internal/app"
	"github.com/productmatch/backend/internal/delivery/stream"
	"github.com/productmatch/backend/internal/infrastructure/metrics"
)

func newStreamCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "Match records from the input Kafka topic until interrupted",
		Long: `Consume match requests from kafka.input_topic and publish one response per
request to kafka.output_topic. Each request holds either typed fields or
positional values bound by matching.input_fields:

  {"id":"r1","fields":[{"field":"GTIN_CODE","value":"7894900011517"}]}
  {"id":"r2","values":["7894900011517","Coca-Cola",null,null]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if err := cfg.Kafka.ValidateStream(); err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			sc := stream.Config{
				Brokers:     cfg.Kafka.Brokers,
				InputTopic:  cfg.Kafka.InputTopic,
				OutputTopic: cfg.Kafka.OutputTopic,
				GroupID:     cfg.Kafka.GroupID,
			}
			worker := stream.NewWorker(stream.NewReader(sc), stream.NewWriter(sc), a.Service, logger.Named("stream"), metrics.Recorder{})
			defer worker.Close()

			logger.Info("stream worker started",
				zap.Strings("brokers", sc.Brokers),
				zap.String("input_topic", sc.InputTopic),
				zap.String("output_topic", sc.OutputTopic),
				zap.String("group_id", sc.GroupID))

			if err := worker.Run(cmd.Context()); err != nil {
				return err
			}
			logger.Info("stream worker stopped")
			return nil
		},
	}
}
