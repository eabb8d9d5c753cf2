package main

import (
	"fmt"

	"genai-gateway/dispatch/infra"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// keys mostra o pool como o despacho o enxerga, sem revelar as chaves.
func newKeysCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Print the configured API key pool (masked) and the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := infra.NewEnvSettings(v).Settings()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "model: %s\n", s.Model)
			if len(s.Pool) == 0 {
				fmt.Fprintf(out, "no API keys configured (set %s or %s)\n", infra.EnvAPIKeys, infra.EnvAPIKey)
				return nil
			}
			for i, c := range s.Pool {
				fmt.Fprintf(out, "%d  %s  %s\n", i, c.ID, c.Masked())
			}
			return nil
		},
	}
}
