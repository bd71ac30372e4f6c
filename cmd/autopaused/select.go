package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/younsl/autopaused/internal/config"
	"github.com/younsl/autopaused/pkg/formatter"
	"github.com/younsl/autopaused/pkg/orchestrator"
	"github.com/younsl/autopaused/pkg/utils"
)

func newSelectCmd() *cobra.Command {
	var (
		gpuType     string
		deployment  string
		activeHours float64
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Show which provider a GPU type would be placed on",
		Example: `  autopaused select --gpu A10G
  autopaused select --gpu T4 --deployment byoc --active-hours 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			d := cfg.DeploymentContext()
			if deployment != "" {
				if d, err = orchestrator.ParseDeployment(deployment); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			clients, _, err := buildProviders(ctx, cfg, resolveRegion(ctx, cfg))
			if err != nil {
				return err
			}

			orch, err := orchestrator.New(clients, orchestrator.Options{
				Policy: cfg.Policy(),
				Rates:  newPricingClient(ctx, cfg, zerolog.Nop()),
			})
			if err != nil {
				return err
			}

			gpu := utils.NormalizeGPUType(gpuType)
			c, err := orch.SelectProvider(gpu, d)
			if err != nil {
				return err
			}

			if activeHours <= 0 {
				fmt.Printf("%s %s (%s)\n", formatter.PadString("Provider:", 24), c.Name(), c.Kind())
				return nil
			}

			est, err := orch.SavingsPotential(ctx, gpu, activeHours)
			if err != nil {
				return err
			}
			formatter.PrintEstimate(os.Stdout, fmt.Sprintf("%s (%s)", c.Name(), c.Kind()), est)
			return nil
		},
	}

	cmd.Flags().StringVarP(&gpuType, "gpu", "g", "", "GPU type, e.g. T4, A10G, A100")
	cmd.Flags().StringVarP(&deployment, "deployment", "d", "", "Deployment context: saas, byoc, on_premise, hybrid (default: deployment.context)")
	cmd.Flags().Float64Var(&activeHours, "active-hours", 0, "Active hours per month for a savings estimate")
	cmd.MarkFlagRequired("gpu")
	return cmd
}
