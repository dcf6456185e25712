// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func TestAntiBot(t *testing.T) {
	t.Run("disabled monitor never activates", func(t *testing.T) {
		monitor := auth.NewAntiBot(auth.AntiBotSettings{Enabled: false})
		for range 100 {
			monitor.RecordJoin()
		}
		assert.Equal(t, auth.MonitorDisabled, monitor.Status())
	})

	t.Run("listens below the burst", func(t *testing.T) {
		monitor := auth.NewAntiBot(auth.AntiBotSettings{
			Enabled:        true,
			JoinsPerSecond: 100,
			JoinBurst:      50,
		})
		monitor.RecordJoin()
		assert.Equal(t, auth.MonitorListening, monitor.Status())
	})

	t.Run("activates under join pressure", func(t *testing.T) {
		monitor := auth.NewAntiBot(auth.AntiBotSettings{
			Enabled:        true,
			JoinsPerSecond: 1,
			JoinBurst:      3,
			ActiveDuration: time.Minute,
		})
		for range 10 {
			monitor.RecordJoin()
		}
		assert.Equal(t, auth.MonitorActive, monitor.Status())
	})

	t.Run("decays back to listening", func(t *testing.T) {
		monitor := auth.NewAntiBot(auth.AntiBotSettings{
			Enabled:        true,
			JoinsPerSecond: 1,
			JoinBurst:      1,
			ActiveDuration: 10 * time.Millisecond,
		})
		for range 5 {
			monitor.RecordJoin()
		}
		assert.Equal(t, auth.MonitorActive, monitor.Status())

		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, auth.MonitorListening, monitor.Status())
	})

	t.Run("tracks blocked identities case-insensitively", func(t *testing.T) {
		monitor := auth.NewAntiBot(auth.AntiBotSettings{Enabled: true})
		monitor.RecordBlocked("Bot1234")
		monitor.RecordBlocked("bot1234")

		assert.True(t, monitor.WasBlocked("BOT1234"))
		assert.False(t, monitor.WasBlocked("human"))
		assert.Equal(t, 1, monitor.BlockedCount())
	})
}
