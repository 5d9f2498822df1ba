package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/justyntemme/gomedian/pkg/max/simhost"
)

// newClassesCmd creates the classes subcommand.
func newClassesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the classes the bundled externals register",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			writeClasses(cmd.OutOrStdout(), s.host.Classes())
			return nil
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func writeClasses(out io.Writer, classes []simhost.ClassInfo) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tKIND\tMETHODS\tATTRIBUTES")
	for _, c := range classes {
		kind := "max"
		switch {
		case c.Jitter:
			kind = "jitter"
		case c.DSP:
			kind = "msp"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, kind, join(c.Methods), join(c.Attrs))
	}
	_ = w.Flush()
}

func join(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ",")
}
