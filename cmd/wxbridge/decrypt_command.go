// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/wxbridge/internal/keystream"
)

func newDecryptCommand() *cobra.Command {
	var key keystream.FileKey
	cmd := &cobra.Command{
		Use:   "decrypt <file>",
		Short: "Decrypt the header of a downloaded file in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := keystream.NewCipher().DecryptFile(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "decrypted %d bytes of %s\n", n, args[0])
			return err
		},
	}
	cmd.Flags().StringVar(&key.Seed, "seed", "", "Decimal decode key of the media item")
	cmd.Flags().StringVar(&key.Prefix, "prefix", "", "Base64 keystream to apply instead of deriving one")
	cmd.Flags().IntVar(&key.PrefixLen, "prefix-len", 0, "Truncate the prefix keystream to this many bytes")
	cmd.MarkFlagsMutuallyExclusive("seed", "prefix")
	cmd.MarkFlagsOneRequired("seed", "prefix")
	return cmd
}
