package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miradorstack/water-ai/internal/config"
	"github.com/miradorstack/water-ai/internal/engine"
	"github.com/miradorstack/water-ai/internal/models"
	"github.com/miradorstack/water-ai/internal/utils"
)

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var (
		quality       float64
		contamination float64
		target        string
		flowRate      float64
		bod           float64
		cod           float64
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Compute treatment setpoints for a quality score and contamination index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tier := models.TargetQuality(target)
			if !tier.Valid() {
				return fmt.Errorf("unknown target quality %q", target)
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger := utils.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON)
			rules, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
			if err != nil {
				return fmt.Errorf("load rule pack: %w", err)
			}

			sensorData := models.FeatureVector{}
			flags := cmd.Flags()
			if flags.Changed("flow-rate") {
				sensorData[models.SensorFlowRate] = flowRate
			}
			if flags.Changed("bod") {
				sensorData[models.SensorBOD] = bod
			}
			if flags.Changed("cod") {
				sensorData[models.SensorCOD] = cod
			}

			result := engine.NewOptimizer(rules).Optimize(models.OptimizationRequest{
				QualityScore:       quality,
				ContaminationIndex: contamination,
				SensorData:         sensorData,
				TargetQuality:      tier,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&quality, "quality", 50, "Quality score (0-100)")
	flags.Float64Var(&contamination, "contamination", 50, "Contamination index (0-100)")
	flags.StringVar(&target, "target", string(models.TargetIrrigation), "Target tier: environmental, industrial, irrigation or drinking")
	flags.Float64Var(&flowRate, "flow-rate", 0, "Inflow rate in litres per minute")
	flags.Float64Var(&bod, "bod", 0, "Biological oxygen demand (mg/L)")
	flags.Float64Var(&cod, "cod", 0, "Chemical oxygen demand (mg/L)")
	return cmd
}
