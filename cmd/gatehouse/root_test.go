// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/crypt"
)

func TestRootCmdHasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0, 4)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "migrate")
	assert.Contains(t, names, "hash")
}

func TestHashCmd(t *testing.T) {
	t.Run("hashes with an explicit algorithm", func(t *testing.T) {
		cmd := NewRootCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs([]string{"hash", "--algorithm", "md5", "swordfish"})

		require.NoError(t, cmd.Execute())

		output := out.String()
		assert.Contains(t, output, "algorithm: md5")
		// md5 of "swordfish"
		assert.Contains(t, output, "15b29ffdce66e10527a65bc6d71ad94d")
	})

	t.Run("produces a verifiable hash", func(t *testing.T) {
		cmd := NewRootCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs([]string{"hash", "--algorithm", "argon2id", "swordfish"})

		require.NoError(t, cmd.Execute())

		var hash string
		for line := range strings.Lines(out.String()) {
			if rest, ok := strings.CutPrefix(line, "hash: "); ok {
				hash = strings.TrimSpace(rest)
			}
		}
		require.NotEmpty(t, hash)

		method := crypt.NewArgon2id()
		assert.True(t, method.ComparePassword("swordfish", crypt.NewHashedPassword(hash), ""))
	})

	t.Run("requires the password argument", func(t *testing.T) {
		cmd := NewRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"hash"})

		assert.Error(t, cmd.Execute())
	})
}

func TestMigrateForceValidation(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate", "force", "not-a-number"})

	assert.Error(t, cmd.Execute())
}
