package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/market-dashboard-proxy/pkg/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the CoinGecko API key",
		Long: `Manage the CoinGecko API key.

The key is stored in the OS keyring and used by serve when CG_DEMO_KEY is not set.`,
	}

	cmd.AddCommand(newSetKeyCommand())
	cmd.AddCommand(newClearKeyCommand())

	return cmd
}

func newSetKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store the CoinGecko API key in the OS keyring",
		Long: `Store the CoinGecko API key in the OS keyring.

Example:
  market-proxy auth set-key
  market-proxy auth set-key --key CG-xxxxxxxx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cmd.Flags().GetString("key")
			if err != nil {
				return err
			}

			key = strings.TrimSpace(key)
			if key == "" {
				key, err = readKey(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}

			if key == "" {
				return errors.New("api key cannot be empty")
			}

			if err := config.NewKeyStore("").SetKey(key); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Saved CoinGecko API key")
			return nil
		},
	}

	cmd.Flags().String("key", "", "API key (optional, overrides prompt)")

	return cmd
}

func newClearKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-key",
		Short: "Remove the CoinGecko API key from the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := config.NewKeyStore("").DeleteKey()
			if errors.Is(err, config.ErrKeyNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No CoinGecko API key stored")
				return nil
			}
			if err != nil {
				return fmt.Errorf("remove api key: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Removed CoinGecko API key")
			return nil
		},
	}
}

// readKey prompts without echo on a terminal and reads one line otherwise.
func readKey(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Enter API key: ")
		bytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
