package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fsledger/internal/config"
	"github.com/Aman-CERP/fsledger/internal/hash"
	"github.com/Aman-CERP/fsledger/internal/service"
)

func newHashCmd() *cobra.Command {
	var (
		algorithm  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "hash <file>",
		Short: "Print a file's content fingerprint",
		Long: `Print the fingerprint fsledger would record for a file, as
<algorithm>:<hex>. Fingerprints detect changes; they are not for security.`,
		Example: `  fsledger hash go.mod
  fsledger hash --algorithm blake3 big.iso`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc := service.New(nil, nil, hash.NewEngine(hashOptions(cfg, nil)), service.Options{
				HashAlgorithm: defaultAlgorithm(cfg),
			})

			res, err := svc.GetFileHash(cmd.Context(), service.HashRequest{
				FilePath:  config.ExpandHome(args[0]),
				Algorithm: algorithm,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			_, err = cmd.OutOrStdout().Write([]byte(res.Hash + "  " + res.FilePath + "\n"))
			return err
		},
	}

	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "sha256, sha1, md5, blake3, xxhash64 (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
