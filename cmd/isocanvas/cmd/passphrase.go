package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/isocanvas/isocanvas/internal/auth"
)

var hashPassphraseCmd = &cobra.Command{
	Use:   "hash-passphrase",
	Short: "Hash an edit passphrase for EDIT_PASSPHRASE_HASH",
	Long: `Read a passphrase from standard input and print its bcrypt hash.
Set the output as EDIT_PASSPHRASE_HASH to require the passphrase when
requesting edit tokens.

Examples:
  echo 'correct horse' | isocanvas hash-passphrase`,
	Args: cobra.NoArgs,
	RunE: runHashPassphrase,
}

func init() {
	rootCmd.AddCommand(hashPassphraseCmd)
}

func runHashPassphrase(cmd *cobra.Command, args []string) error {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read passphrase: %w", err)
	}
	passphrase := strings.TrimRight(line, "\r\n")
	if passphrase == "" {
		return errors.New("passphrase is empty")
	}

	hash, err := auth.HashPassphrase(passphrase)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	if verbose {
		fmt.Fprintln(os.Stderr, "export EDIT_PASSPHRASE_HASH='"+hash+"'")
	}
	return nil
}
