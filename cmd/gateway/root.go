package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.AutomaticEnv()

	serve := newServeCmd(v)

	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Proxy for the generative-language chat API with local rate limiting and key rotation",
		SilenceUsage:  true,
		SilenceErrors: true,
		// sem subcomando: sobe o servidor
		RunE: serve.RunE,
	}
	root.PersistentFlags().String("log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().String("log-format", "", "json or console (overrides LOG_FORMAT)")
	_ = v.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("LOG_FORMAT", root.PersistentFlags().Lookup("log-format"))

	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, newKeysCmd(v))
	return root
}
