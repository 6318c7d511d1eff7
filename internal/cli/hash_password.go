package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giantswarm/storefront/security"
)

// HashPasswordOptions holds flags for the hash-password command.
type HashPasswordOptions struct {
	Cost int
}

// NewHashPasswordCommand creates the hash-password command.
func NewHashPasswordCommand(_ *RootOptions) *cobra.Command {
	opts := &HashPasswordOptions{}

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Long: `Print a bcrypt hash of the admin password for use as ADMIN_PASSWORD_HASH.

The password is read from the first line of stdin when not given as an
argument, which keeps it out of shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given on stdin")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := security.HashPassword(password, opts.Cost)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Cost, "cost", 0, "bcrypt cost (0 uses the bcrypt default)")

	return cmd
}
