package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/miradorstack/water-ai/internal/config"
	"github.com/miradorstack/water-ai/internal/registry"
	"github.com/miradorstack/water-ai/internal/utils"
)

func newModelsCmd(opts *rootOptions) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect model artifacts",
	}

	var dir string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the artifacts a server would load",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Models.Dir
			}
			logger := utils.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON)
			return listModels(cmd.OutOrStdout(), registry.LoadDir(dir, logger), logger)
		},
	}
	listCmd.Flags().StringVar(&dir, "dir", "", "Artifact directory (defaults to models.dir)")

	modelsCmd.AddCommand(listCmd)
	return modelsCmd
}

func listModels(out io.Writer, reg *registry.Registry, logger *slog.Logger) error {
	for _, err := range reg.LoadErrors() {
		logger.Warn("artifact skipped", slog.Any("error", err))
	}
	if reg.Len() == 0 {
		_, err := fmt.Fprintln(out, "no models loaded")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tVERSION\tTYPE\tDERIVATION\tTARGET\tFEATURES")
	for _, info := range reg.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.DatasetName, info.Version, info.Kind, info.Derivation, info.Target,
			strings.Join(info.Features, ","))
	}
	return tw.Flush()
}
