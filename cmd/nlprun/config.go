package main

import (
	"github.com/spf13/cobra"

	"github.com/textlab/nlprun/internal/model"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return model.Dump(cmd.OutOrStdout(), config, configFormat)
	},
}

func init() {
	configCmd.Flags().StringVar(&configFormat, "format", "yaml", "output format: yaml, toml or json")
}
