// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package naming derives the canonical guild object names for a cohort
// ("semester") and resolves names against the live directory.
//
// Name derivation is pure and total: every template is a fixed string
// format over the semester number and class index. Resolution tolerates
// the two Unicode normalization forms of compound emoji (with and
// without U+200D, the zero-width joiner), because Discord clients store
// either depending on which client created the object.
package naming

import (
	"fmt"
	"strings"
)

// Glyphs marking a cohort channel's lifecycle status. The retire
// workflow swaps the leading active glyph for the retired one.
const (
	ActiveGlyph  = "📗"
	RetiredGlyph = "📙"
)

// Cohort identifies one semester intake by number.
type Cohort int

// StudentRole is the cohort-wide student role, e.g. "5期生".
func (c Cohort) StudentRole() string {
	return fmt.Sprintf("%d期生", c)
}

// StaffRole is the cohort-wide staff role, e.g. "5期職員".
func (c Cohort) StaffRole() string {
	return fmt.Sprintf("%d期職員", c)
}

// ClassStudentRole is the per-class student role, e.g. "5-1生徒".
func (c Cohort) ClassStudentRole(class int) string {
	return fmt.Sprintf("%d-%d生徒", c, class)
}

// ClassStaffRole is the per-class staff role, e.g. "5-1職員".
func (c Cohort) ClassStaffRole(class int) string {
	return fmt.Sprintf("%d-%d職員", c, class)
}

// StaffCategory is the staff category, e.g. "👨‍🏫 5期職員".
func (c Cohort) StaffCategory() string {
	return fmt.Sprintf("👨‍🏫 %d期職員", c)
}

// StudentCategory is the student category, e.g. "👨‍🎓 5期生徒".
func (c Cohort) StudentCategory() string {
	return fmt.Sprintf("👨‍🎓 %d期生徒", c)
}

// AnnounceChannel is the cohort-wide announcement channel.
func (c Cohort) AnnounceChannel() string {
	return fmt.Sprintf("%s📢｜%d期連絡", ActiveGlyph, c)
}

// ClassStaffChannel is the per-class staff channel.
func (c Cohort) ClassStaffChannel(class int) string {
	return fmt.Sprintf("%s📝｜%d-%d教員", ActiveGlyph, c, class)
}

// ClassChatChannel is the per-class student chat channel.
func (c Cohort) ClassChatChannel(class int) string {
	return fmt.Sprintf("%s💬｜%d-%d雑談", ActiveGlyph, c, class)
}

// ClassPhotoChannel is the per-class photo-sharing channel.
func (c Cohort) ClassPhotoChannel(class int) string {
	return fmt.Sprintf("%s📸｜%d-%d写真", ActiveGlyph, c, class)
}

// ClassAnnounceChannel is the per-class announcement channel.
func (c Cohort) ClassAnnounceChannel(class int) string {
	return fmt.Sprintf("%s📢｜%d-%d連絡", ActiveGlyph, c, class)
}

// Label is the cohort's display form, e.g. "5期".
func (c Cohort) Label() string {
	return fmt.Sprintf("%d期", c)
}

// EventRole is the role for an ad-hoc event space, e.g. "🎯 文化祭".
func EventRole(event string) string {
	return "🎯 " + event
}

// EventCategory is the category for an ad-hoc event space.
func EventCategory(event string) string {
	return event
}

// EventLogChannel is the forum channel recording an event's log.
func EventLogChannel(event string) string {
	return "ログ-" + event
}

// EventRoleChannelPrefix marks the text channel where an event's role
// is granted and revoked.
const EventRoleChannelPrefix = "ロール付与-"

// EventRoleChannel is the text channel for event role assignment.
func EventRoleChannel(event string) string {
	return EventRoleChannelPrefix + event
}

// EventFromRoleChannel extracts the event name from a role-assignment
// channel name ("ロール付与-文化祭" yields "文化祭"). The second return
// is false for any other channel.
func EventFromRoleChannel(channelName string) (string, bool) {
	event, ok := strings.CutPrefix(channelName, EventRoleChannelPrefix)
	if !ok || event == "" {
		return "", false
	}
	return event, true
}

// ParentRole maps a class-scoped role name to its cohort-wide parent:
// "5-1生徒" -> "5期生", "5-1職員" -> "5期職員". The second return is
// false when the name is not a class role.
func ParentRole(roleName string) (string, bool) {
	prefix, _, found := strings.Cut(roleName, "-")
	if !found {
		return "", false
	}
	switch {
	case strings.HasSuffix(roleName, "生徒"):
		return prefix + "期生", true
	case strings.HasSuffix(roleName, "職員"):
		return prefix + "期職員", true
	default:
		return "", false
	}
}

// Retire swaps the leading active glyph for the retired glyph, once.
// Names without the active glyph are returned unchanged.
func Retire(channelName string) string {
	return strings.Replace(channelName, ActiveGlyph, RetiredGlyph, 1)
}

// zwj is the zero-width joiner used in compound emoji sequences.
const zwj = "\u200d"

// FoldZWJ removes zero-width joiners so that the composed and
// decomposed forms of a compound emoji compare equal, in both
// directions ("👨‍🏫" and "👨🏫" fold to the same string).
func FoldZWJ(s string) string {
	return strings.ReplaceAll(s, zwj, "")
}
