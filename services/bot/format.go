// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bot

import (
	"fmt"
	"strings"

	"github.com/kinokolab/semesterd/services/confirm"
	"github.com/kinokolab/semesterd/services/lifecycle"
)

// Discord caps message content at 2000 characters; long reports are
// truncated with a marker rather than rejected.
const maxMessageLen = 2000

// renderReport renders a workflow report as a Discord message: one
// ✅/❌ line per stage with its detail lines indented underneath.
func renderReport(r *lifecycle.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", r.Title)
	for _, stage := range r.Stages {
		if stage.Err != nil {
			fmt.Fprintf(&sb, "❌ %s: %v\n", stage.Name, stage.Err)
		} else {
			fmt.Fprintf(&sb, "✅ %s\n", stage.Name)
		}
		for _, line := range stage.Detail {
			fmt.Fprintf(&sb, "　- %s\n", line)
		}
	}
	return truncate(sb.String())
}

// renderPlan renders a confirmation prompt listing everything the
// gated operation will destroy.
func renderPlan(p *confirm.Pending) string {
	var sb strings.Builder
	sb.WriteString("⚠️ **以下のオブジェクトを削除します。よろしいですか？**\n")
	for _, line := range p.Plan {
		fmt.Fprintf(&sb, "- %s\n", line)
	}
	sb.WriteString("\nこの操作は取り消せません。")
	return truncate(sb.String())
}

func renderOutcome(o confirm.Outcome) string {
	switch o {
	case confirm.OutcomeConfirmed:
		return "✅ 削除を実行しました。"
	case confirm.OutcomeCancelled:
		return "❌ キャンセルしました。何も削除されていません。"
	case confirm.OutcomeExpired:
		return "⏱️ 確認がタイムアウトしました。何も削除されていません。"
	default:
		return ""
	}
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	const marker = "\n…(省略)"
	cut := maxMessageLen - len(marker)
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}

func isRuneStart(b byte) bool { return b&0xc0 != 0x80 }
