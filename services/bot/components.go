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
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/kinokolab/semesterd/services/confirm"
)

const (
	confirmYesPrefix = "confirm_yes:"
	confirmNoPrefix  = "confirm_no:"
)

// setReplyChannel records where a requester's next confirmation prompt
// should be posted. Destructive command handlers set it for the span
// of the gated call.
func (b *Bot) setReplyChannel(requesterID, channelID string) {
	b.replyChannels.Store(requesterID, channelID)
}

func (b *Bot) clearReplyChannel(requesterID string) {
	b.replyChannels.Delete(requesterID)
}

// Present posts the deletion plan with confirm and cancel buttons to
// the channel the requester invoked the command from. It satisfies
// lifecycle.Presenter.
func (b *Bot) Present(ctx context.Context, p *confirm.Pending) error {
	v, ok := b.replyChannels.Load(p.RequesterID)
	if !ok {
		return fmt.Errorf("no reply channel recorded for requester %s", p.RequesterID)
	}
	channelID := v.(string)

	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: renderPlan(p),
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "削除する",
						Style:    discordgo.DangerButton,
						CustomID: confirmYesPrefix + p.ID.String(),
					},
					discordgo.Button{
						Label:    "キャンセル",
						Style:    discordgo.SecondaryButton,
						CustomID: confirmNoPrefix + p.ID.String(),
					},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("posting confirmation prompt: %w", err)
	}
	return nil
}

// handleComponent routes a button press to the confirmation gate.
func (b *Bot) handleComponent(i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	var idStr string
	var confirmed bool
	switch {
	case strings.HasPrefix(customID, confirmYesPrefix):
		idStr, confirmed = strings.TrimPrefix(customID, confirmYesPrefix), true
	case strings.HasPrefix(customID, confirmNoPrefix):
		idStr, confirmed = strings.TrimPrefix(customID, confirmNoPrefix), false
	default:
		return
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		b.log.Warn("malformed confirmation button id", "custom_id", customID)
		return
	}

	err = b.gate.Resolve(id, i.Member.User.ID, confirmed)
	switch {
	case errors.Is(err, confirm.ErrNotRequester):
		b.respondEphemeral(i, "❌ この操作を確認できるのはコマンドの実行者のみです。")
		return
	case errors.Is(err, confirm.ErrUnknownPending):
		b.respondEphemeral(i, "⏱️ この確認は既に終了しています。")
		return
	case err != nil:
		b.log.Error("resolving confirmation failed", "id", id, "error", err)
		return
	}

	// Strip the buttons so the prompt cannot be pressed twice.
	content := "✅ 確認しました。"
	if !confirmed {
		content = "❌ キャンセルしました。"
	}
	rerr := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    i.Message.Content + "\n\n" + content,
			Components: []discordgo.MessageComponent{},
		},
	})
	if rerr != nil {
		b.log.Warn("updating confirmation prompt failed", "error", rerr)
	}
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Warn("ephemeral response failed", "error", err)
	}
}
