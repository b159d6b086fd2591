// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package naming

import "testing"

func TestCohortNames(t *testing.T) {
	c := Cohort(5)

	cases := []struct {
		got, want string
	}{
		{c.StudentRole(), "5期生"},
		{c.StaffRole(), "5期職員"},
		{c.ClassStudentRole(1), "5-1生徒"},
		{c.ClassStaffRole(2), "5-2職員"},
		{c.StaffCategory(), "👨‍🏫 5期職員"},
		{c.StudentCategory(), "👨‍🎓 5期生徒"},
		{c.AnnounceChannel(), "📗📢｜5期連絡"},
		{c.ClassStaffChannel(1), "📗📝｜5-1教員"},
		{c.ClassChatChannel(1), "📗💬｜5-1雑談"},
		{c.ClassPhotoChannel(2), "📗📸｜5-2写真"},
		{c.ClassAnnounceChannel(2), "📗📢｜5-2連絡"},
		{c.Label(), "5期"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("got %q, want %q", tc.got, tc.want)
		}
	}
}

func TestEventNames(t *testing.T) {
	if got := EventRole("文化祭"); got != "🎯 文化祭" {
		t.Errorf("EventRole = %q", got)
	}
	if got := EventLogChannel("文化祭"); got != "ログ-文化祭" {
		t.Errorf("EventLogChannel = %q", got)
	}
	if got := EventRoleChannel("文化祭"); got != "ロール付与-文化祭" {
		t.Errorf("EventRoleChannel = %q", got)
	}
	if got := EventCategory("文化祭"); got != "文化祭" {
		t.Errorf("EventCategory = %q", got)
	}
}

func TestEventFromRoleChannel(t *testing.T) {
	if event, ok := EventFromRoleChannel("ロール付与-文化祭"); !ok || event != "文化祭" {
		t.Errorf("EventFromRoleChannel = %q, %v", event, ok)
	}
	if _, ok := EventFromRoleChannel("総合受付"); ok {
		t.Error("non role-assignment channel must not yield an event")
	}
	if _, ok := EventFromRoleChannel("ロール付与-"); ok {
		t.Error("empty event name must not be accepted")
	}
}

func TestParentRole(t *testing.T) {
	t.Run("class student role maps to cohort student role", func(t *testing.T) {
		parent, ok := ParentRole("5-1生徒")
		if !ok || parent != "5期生" {
			t.Errorf("ParentRole(5-1生徒) = %q, %v", parent, ok)
		}
	})

	t.Run("class staff role maps to cohort staff role", func(t *testing.T) {
		parent, ok := ParentRole("12-3職員")
		if !ok || parent != "12期職員" {
			t.Errorf("ParentRole(12-3職員) = %q, %v", parent, ok)
		}
	})

	t.Run("non-class roles have no parent", func(t *testing.T) {
		for _, name := range []string{"5期生", "OB", "🎯 文化祭", "5-1雑談"} {
			if _, ok := ParentRole(name); ok {
				t.Errorf("ParentRole(%q) resolved, want none", name)
			}
		}
	})
}

func TestRetire(t *testing.T) {
	if got := Retire("📗📢｜5期連絡"); got != "📙📢｜5期連絡" {
		t.Errorf("Retire = %q", got)
	}
	// Only the first occurrence is swapped.
	if got := Retire("📗📗x"); got != "📙📗x" {
		t.Errorf("Retire = %q", got)
	}
	// Names without the glyph pass through.
	if got := Retire("総合受付"); got != "総合受付" {
		t.Errorf("Retire = %q", got)
	}
}

func TestFoldZWJ(t *testing.T) {
	joined := "👨‍🏫 3期職員"
	decomposed := "👨🏫 3期職員"
	if FoldZWJ(joined) != FoldZWJ(decomposed) {
		t.Errorf("FoldZWJ(%q) != FoldZWJ(%q)", joined, decomposed)
	}
	if FoldZWJ(decomposed) != decomposed {
		t.Errorf("FoldZWJ changed a string without joiners: %q", FoldZWJ(decomposed))
	}
}
