package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pulsecheck/internal/sqlnorm"
)

// normalizeCmd prints the canonical shape of SQL given as an argument or on stdin, one statement per line.
var normalizeCmd = &cobra.Command{
	Use:   "normalize [sql]",
	Short: "Print the normalized shape of SQL statements",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			fmt.Fprintln(out, sqlnorm.Truncate(sqlnorm.NormalizeString(args[0])))
			return nil
		}
		return normalizeLines(cmd.InOrStdin(), out)
	},
}

func normalizeLines(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintln(out, sqlnorm.Truncate(sqlnorm.NormalizeString(line)))
	}
	return scanner.Err()
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}
