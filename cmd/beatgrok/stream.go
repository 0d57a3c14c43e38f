package main

import (
	"github.com/spf13/cobra"

	"beatgrok/internal/config"
	"beatgrok/internal/grok"
	"beatgrok/internal/processor"
)

func newStreamCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Tail the shipper's redis stream and forward records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return processor.New(cfg, grok.DefaultRuleset()).Run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Stream.RedisAddr, "redis-addr", cfg.Stream.RedisAddr, "redis address")
	f.StringVar(&cfg.Stream.Stream, "stream", cfg.Stream.Stream, "redis stream key")
	f.StringVar(&cfg.Stream.CheckpointKey, "checkpoint-key", cfg.Stream.CheckpointKey, "redis key holding the last processed id")
	f.StringSliceVar(&cfg.Kafka.Brokers, "kafka-brokers", cfg.Kafka.Brokers, "kafka brokers; records go to stdout when empty")
	f.StringVar(&cfg.Kafka.Topic, "topic", cfg.Kafka.Topic, "kafka topic")
	return cmd
}
