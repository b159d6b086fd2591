// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestAuthorized(t *testing.T) {
	full := invocation{
		channelName: "botテスト場",
		roleNames:   []string{"5期職員", "管理者"},
		permissions: discordgo.PermissionAdministrator,
	}

	t.Run("all three conditions hold", func(t *testing.T) {
		assert.True(t, authorized(full, "botテスト", "管理者"))
	})

	t.Run("wrong channel", func(t *testing.T) {
		inv := full
		inv.channelName = "総合受付"
		assert.False(t, authorized(inv, "botテスト", "管理者"))
	})

	t.Run("missing staff role", func(t *testing.T) {
		inv := full
		inv.roleNames = []string{"5期職員"}
		assert.False(t, authorized(inv, "botテスト", "管理者"))
	})

	t.Run("missing administrator permission", func(t *testing.T) {
		inv := full
		inv.permissions = discordgo.PermissionSendMessages
		assert.False(t, authorized(inv, "botテスト", "管理者"))
	})
}
