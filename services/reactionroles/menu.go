// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reactionroles

import (
	"fmt"
	"strings"
)

// Kind is the semantic class of a role binding, driving parent-role
// propagation: class roles pull the matching cohort-wide role along.
type Kind string

const (
	KindStudentClass Kind = "student-class"
	KindStaffClass   Kind = "staff-class"
	KindOther        Kind = "other"
)

// ClassifyRole derives the binding kind from a role name. Class roles
// follow the "{semester}-{class}" prefix convention.
func ClassifyRole(name string) Kind {
	if !strings.Contains(name, "-") {
		return KindOther
	}
	switch {
	case strings.HasSuffix(name, "生徒"):
		return KindStudentClass
	case strings.HasSuffix(name, "職員"):
		return KindStaffClass
	default:
		return KindOther
	}
}

// Binding ties one trigger emoji to one grantable role within a menu.
type Binding struct {
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
	Emoji    string `json:"emoji"`
	Kind     Kind   `json:"kind"`
}

// Menu is one reaction-role message: the message it lives on, the
// cohort it was created for, and its ordered bindings. Bindings are
// fixed at creation; a menu is only ever registered and later purged.
type Menu struct {
	MessageID string    `json:"-"`
	ChannelID string    `json:"channel_id"`
	Cohort    int       `json:"cohort"`
	Bindings  []Binding `json:"bindings"`
}

func (m *Menu) binding(emoji string) (Binding, bool) {
	for _, b := range m.Bindings {
		if b.Emoji == emoji {
			return b, true
		}
	}
	return Binding{}, false
}

// KeycapEmoji returns the keycap digit emoji for 1..10, the reaction
// triggers used by class-selection menus.
func KeycapEmoji(n int) string {
	if n == 10 {
		return "🔟"
	}
	return fmt.Sprintf("%d️⃣", n)
}

// RenderClassMenu renders the student class-selection message. The
// unassigned marker role is mentioned so exactly the members who still
// need a class are pinged.
func RenderClassMenu(cohort int, unassignedRoleID string, bindings []Binding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %d期のクラス選択\n", cohort)
	if unassignedRoleID != "" {
		fmt.Fprintf(&sb, "<@&%s> ", unassignedRoleID)
	}
	sb.WriteString("以下のリアクションをクリックして、あなたのクラスを選択してください：\n\n")
	for _, b := range bindings {
		fmt.Fprintf(&sb, "%s - %s\n", b.Emoji, b.RoleName)
	}
	return sb.String()
}

// RenderStaffMenu renders the staff class-assignment message,
// addressed to the guild-wide staff role.
func RenderStaffMenu(cohort int, staffRoleID string, bindings []Binding) string {
	var sb strings.Builder
	sb.WriteString("## ")
	if staffRoleID != "" {
		fmt.Fprintf(&sb, "<@&%s> ", staffRoleID)
	}
	fmt.Fprintf(&sb, "各位。%d期のロールを選択してください。\n", cohort)
	sb.WriteString("以下のリアクションをクリックして、あなたの担当クラスを選択してください：\n\n")
	for _, b := range bindings {
		fmt.Fprintf(&sb, "%s - %s\n", b.Emoji, b.RoleName)
	}
	return sb.String()
}
