package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
	"github.com/Aman-CERP/fsledger/pkg/version"
)

// versionFormats maps --format values to renderers.
var versionFormats = map[string]func(io.Writer, version.BuildInfo) error{
	"short": func(w io.Writer, b version.BuildInfo) error {
		_, err := fmt.Fprintln(w, b.Version)
		return err
	},
	"line": func(w io.Writer, _ version.BuildInfo) error {
		_, err := fmt.Fprintln(w, version.String())
		return err
	},
	"json": func(w io.Writer, b version.BuildInfo) error {
		return writeJSON(w, b)
	},
	"text": writeVersionText,
}

func newVersionCmd() *cobra.Command {
	var (
		format      string
		jsonOutput  bool
		shortOutput bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the fsledger release with the commit and date it was built from,
the Go toolchain and the target platform.

Builds from a checkout with uncommitted changes are marked as modified.`,
		Example: `  fsledger version
  fsledger version --short
  fsledger version --format line`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case shortOutput:
				format = "short"
			case jsonOutput:
				format = "json"
			}
			render, ok := versionFormats[strings.ToLower(format)]
			if !ok {
				return fserrors.ValidationError(fmt.Sprintf("unknown version format %q", format), nil).
					WithSuggestion("Use one of: text, line, short, json")
			}
			return render(cmd.OutOrStdout(), version.GetInfo())
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, line, short, json")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Same as --format json")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Same as --format short (takes precedence)")

	return cmd
}

func writeVersionText(w io.Writer, b version.BuildInfo) error {
	state := "clean"
	if b.Modified {
		state = "modified"
	}
	_, err := fmt.Fprintf(w, "fsledger %s\n  commit    %s (%s)\n  built     %s\n  go        %s\n  platform  %s/%s\n",
		b.Version, b.Commit, state, b.Date, b.GoVersion, b.OS, b.Arch)
	return err
}
