// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/crypt"
)

// NewHashCmd creates the hash subcommand, an operator utility for
// producing hashes that can be inserted directly into the credential
// table.
func NewHashCmd() *cobra.Command {
	var algorithm string
	var name string

	cmd := &cobra.Command{
		Use:   "hash <password>",
		Short: "Hash a password with the configured algorithm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, nil)
			if err != nil {
				return err
			}
			if algorithm == "" {
				algorithm = cfg.Crypt.Algorithm
			}

			method := crypt.ForName(algorithm, cfg.CryptSettings())
			hp, err := method.ComputeHash(args[0], name)
			if err != nil {
				return err
			}

			cmd.Printf("algorithm: %s (%s)\n", method.Name(), method.Usage())
			cmd.Printf("hash: %s\n", hp.Hash)
			if hp.Salt != "" {
				cmd.Printf("salt: %s\n", hp.Salt)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", "", "hashing algorithm (defaults to configured)")
	cmd.Flags().StringVar(&name, "name", "", "username for name-salted algorithms")

	return cmd
}
