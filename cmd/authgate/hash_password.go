package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authgate/password"
	"github.com/spf13/cobra"
)

type hashConfig struct {
	memoryKB    uint32
	time        uint32
	parallelism uint8
}

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	defaults := password.DefaultConfig()
	cfg := hashConfig{
		memoryKB:    defaults.Memory,
		time:        defaults.Time,
		parallelism: defaults.Parallelism,
	}

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin",
		Long: `Read one password line from stdin and print its argon2id hash in PHC
form, ready to store in the users table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHashPassword(cmd, cfg)
		},
	}

	cmd.Flags().Uint32Var(&cfg.memoryKB, "memory", cfg.memoryKB, "argon2 memory in KiB")
	cmd.Flags().Uint32Var(&cfg.time, "time", cfg.time, "argon2 iterations")
	cmd.Flags().Uint8Var(&cfg.parallelism, "parallelism", cfg.parallelism, "argon2 lanes")

	return cmd
}

func runHashPassword(cmd *cobra.Command, cfg hashConfig) error {
	pcfg := password.DefaultConfig()
	pcfg.Memory = cfg.memoryKB
	pcfg.Time = cfg.time
	pcfg.Parallelism = cfg.parallelism

	hasher, err := password.NewArgon2(pcfg)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		return errors.New("no password on stdin")
	}
	plaintext := strings.TrimRight(scanner.Text(), "\r")

	hash, err := hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	cmd.Println(hash)
	return nil
}
