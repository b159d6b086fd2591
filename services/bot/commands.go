// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/kinokolab/semesterd/services/lifecycle"
	"github.com/kinokolab/semesterd/services/naming"
)

func intOption(name, desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: desc,
		Required:    true,
	}
}

func stringOption(name, desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: desc,
		Required:    true,
	}
}

// commandDefinitions is the slash-command surface registered on every
// startup. Registration overwrites the full guild command set, so a
// removed command disappears on the next deploy.
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "new_season",
			Description: "新学期のロール・カテゴリ・チャンネル・リアクションロールを一括作成します",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("semester", "学期番号"),
				intOption("class_count", "クラス数"),
			},
		},
		{
			Name:        "next_season",
			Description: "学期を引退処理します（OBロール付与とチャンネル名変更）",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("semester", "引退する学期の番号"),
			},
		},
		{
			Name:        "delete_season",
			Description: "学期のオブジェクトを全て削除します（確認あり）",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("semesters", "削除する学期番号（カンマ区切り）"),
			},
		},
		{
			Name:        "create_roles",
			Description: "学期のロールのみ作成します",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("semester", "学期番号"),
				intOption("class_count", "クラス数"),
			},
		},
		{
			Name:        "create_first_roll",
			Description: "サーバー共通のロール（職員・OB）を作成します",
		},
		{
			Name:        "create_categories",
			Description: "学期のカテゴリのみ作成します",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("semester", "学期番号"),
			},
		},
		{
			Name:        "create_channels",
			Description: "学期のチャンネルのみ作成します",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("semester", "学期番号"),
				intOption("class_count", "クラス数"),
			},
		},
		{
			Name:        "create_reaction_roles",
			Description: "学期のリアクションロールのみ作成します",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("semester", "学期番号"),
				intOption("class_count", "クラス数"),
			},
		},
		{
			Name:        "create_event",
			Description: "イベント用のロール・カテゴリ・チャンネルを作成します",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("name", "イベント名"),
			},
		},
		{
			Name:        "delete_event",
			Description: "イベントのオブジェクトを削除します（確認あり）",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("name", "イベント名"),
			},
		},
		{
			Name:        "add_role",
			Description: "このチャンネルのイベントロールをメンバーに付与します",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "対象メンバー",
					Required:    true,
				},
			},
		},
		{
			Name:        "remove_role",
			Description: "このチャンネルのイベントロールをメンバーから削除します",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "対象メンバー",
					Required:    true,
				},
			},
		},
	}
}

// options flattens an interaction's options by name.
func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := map[string]*discordgo.ApplicationCommandInteractionDataOption{}
	for _, opt := range i.ApplicationCommandData().Options {
		out[opt.Name] = opt
	}
	return out
}

// handleCommand dispatches one slash command. The interaction is
// already deferred; the handler's return string becomes the followup
// message. channelName is the invoking channel's name, which the
// event-role commands derive their event from.
func (b *Bot) handleCommand(ctx context.Context, i *discordgo.InteractionCreate, channelName string) string {
	opts := options(i)
	requester := i.Member.User.ID

	switch i.ApplicationCommandData().Name {
	case "new_season":
		c := naming.Cohort(opts["semester"].IntValue())
		return renderReport(b.orch.CreateCohort(ctx, c, int(opts["class_count"].IntValue())))

	case "next_season":
		return renderReport(b.orch.RetireCohort(ctx, naming.Cohort(opts["semester"].IntValue())))

	case "delete_season":
		cohorts, err := parseCohorts(opts["semesters"].StringValue())
		if err != nil {
			return "❌ " + err.Error()
		}
		b.setReplyChannel(requester, i.ChannelID)
		defer b.clearReplyChannel(requester)
		report, outcome := b.orch.DeleteCohorts(ctx, requester, cohorts...)
		return renderOutcome(outcome) + "\n" + renderReport(report)

	case "create_roles":
		c := naming.Cohort(opts["semester"].IntValue())
		return renderReport(b.orch.CreateRoles(ctx, c, int(opts["class_count"].IntValue())))

	case "create_first_roll":
		return renderReport(b.orch.CreateBaseRoles(ctx))

	case "create_categories":
		return renderReport(b.orch.CreateCategories(ctx, naming.Cohort(opts["semester"].IntValue())))

	case "create_channels":
		c := naming.Cohort(opts["semester"].IntValue())
		return renderReport(b.orch.CreateChannels(ctx, c, int(opts["class_count"].IntValue())))

	case "create_reaction_roles":
		c := naming.Cohort(opts["semester"].IntValue())
		return renderReport(b.orch.CreateReactionMenus(ctx, c, int(opts["class_count"].IntValue())))

	case "create_event":
		return renderReport(b.orch.CreateEvent(ctx, opts["name"].StringValue()))

	case "delete_event":
		b.setReplyChannel(requester, i.ChannelID)
		defer b.clearReplyChannel(requester)
		report, outcome := b.orch.DeleteEvent(ctx, requester, opts["name"].StringValue())
		return renderOutcome(outcome) + "\n" + renderReport(report)

	case "add_role":
		event, ok := naming.EventFromRoleChannel(channelName)
		if !ok {
			return "❌ このコマンドはイベントのロール付与チャンネルで実行してください。"
		}
		user := opts["user"].UserValue(b.session)
		err := b.orch.GrantEventRole(ctx, event, user.ID)
		switch {
		case errors.Is(err, lifecycle.ErrAlreadyHolding):
			return fmt.Sprintf("❌ <@%s> は既に `%s` ロールを持っています。", user.ID, naming.EventRole(event))
		case err != nil:
			return "❌ " + err.Error()
		}
		return fmt.Sprintf("✅ <@%s> に `%s` ロールを付与しました。", user.ID, naming.EventRole(event))

	case "remove_role":
		event, ok := naming.EventFromRoleChannel(channelName)
		if !ok {
			return "❌ このコマンドはイベントのロール付与チャンネルで実行してください。"
		}
		user := opts["user"].UserValue(b.session)
		err := b.orch.RevokeEventRole(ctx, event, user.ID)
		switch {
		case errors.Is(err, lifecycle.ErrNotHolding):
			return fmt.Sprintf("❌ <@%s> は `%s` ロールを持っていません。", user.ID, naming.EventRole(event))
		case err != nil:
			return "❌ " + err.Error()
		}
		return fmt.Sprintf("✅ <@%s> から `%s` ロールを削除しました。", user.ID, naming.EventRole(event))
	}

	return "❌ 不明なコマンドです。"
}

// parseCohorts parses a comma- or space-separated semester list.
func parseCohorts(s string) ([]naming.Cohort, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '　'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("学期番号を指定してください")
	}
	var out []naming.Cohort
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("学期番号が不正です: %q", f)
		}
		out = append(out, naming.Cohort(n))
	}
	return out, nil
}
