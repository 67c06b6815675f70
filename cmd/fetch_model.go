package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"shipmonitor/ml"
)

var fetchVerify bool

var fetchModelCmd = &cobra.Command{
	Use:   "fetch-model",
	Short: "Resolve the model artifact and print its local path",
	Long: `Resolve the model artifact through the configured providers (model.path,
then the remote repository) and print where it ended up. A remote download is
cached under model.cache_dir so later starts find it locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		path, err := newChain(cfg, logger).Resolve(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)

		if !fetchVerify {
			return nil
		}
		m, err := ml.LoadModel(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "model %s, probabilities: %t\n", m.Name(), m.SupportsProbabilities())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchModelCmd)
	fetchModelCmd.Flags().BoolVar(&fetchVerify, "verify", false, "decode the artifact after fetching")
}
