// AngelaMos | 2026
// admin.go

package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/identity"
)

func (b *Bot) systemStats(ctx context.Context, s *session) error {
	if !s.who.IsAdmin() {
		return b.reply(s.chatID, msgNoAccess, nil, false)
	}

	stats, err := b.lifecycle.QueueStats(ctx, s.who)
	if err != nil {
		return err
	}

	counts, err := b.identities.CountByRole(ctx)
	if err != nil {
		return err
	}

	return b.reply(s.chatID, systemStatsText(stats.Total, counts), nil, true)
}

func (b *Bot) activity(ctx context.Context, s *session) error {
	if !s.who.IsAdmin() {
		return b.reply(s.chatID, msgNoAccess, nil, false)
	}

	priests, servers, err := b.identities.ListReaders(ctx)
	if err != nil {
		return err
	}

	return b.reply(s.chatID, activityText(priests, servers), nil, true)
}

func (b *Bot) showSettings(s *session) error {
	if !s.who.IsAdmin() {
		return b.reply(s.chatID, msgNoAccess, nil, false)
	}
	return b.reply(s.chatID, settingsText(b.settings), nil, true)
}

func (b *Bot) beginRoleChange(ctx context.Context, s *session) error {
	if !s.who.IsAdmin() {
		return b.reply(s.chatID, msgNoAccess, nil, false)
	}

	s.flow.BeginRoleChange()
	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}

	return b.reply(s.chatID, msgEnterHandle, cancelKeyboard(), false)
}

// denyStale drops a role dialogue whose owner lost the admin role midway.
func (b *Bot) denyStale(ctx context.Context, s *session) error {
	s.flow.Reset()
	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}
	return b.reply(s.chatID, msgNoAccess, menuFor(s.who), false)
}

func (b *Bot) collectTarget(ctx context.Context, s *session, text string) error {
	if !s.who.IsAdmin() {
		return b.denyStale(ctx, s)
	}

	err := s.flow.SetTarget(text)
	if msg, ok := validationMessage(err); ok {
		return b.reply(s.chatID, msg, nil, false)
	}
	if err != nil {
		return err
	}

	target, err := b.identities.FindByHandle(ctx, s.flow.TargetHandle)
	if errors.Is(err, core.ErrNotFound) {
		return b.reply(s.chatID, msgUserNotFound, nil, false)
	}
	if err != nil {
		return err
	}

	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}

	return b.reply(s.chatID, rolePromptText(target.Role), nil, true)
}

func (b *Bot) collectRole(ctx context.Context, s *session, text string) error {
	if !s.who.IsAdmin() {
		return b.denyStale(ctx, s)
	}

	role, err := identity.ParseRoleChoice(text)
	if err != nil {
		return b.reply(s.chatID, msgBadRole, nil, false)
	}

	target := s.flow.TargetHandle
	s.flow.Reset()
	if err := b.saveFlow(ctx, s); err != nil {
		return err
	}

	change, err := b.identities.ChangeRole(ctx, s.who, target, role)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return b.reply(s.chatID, msgUserNotFound, adminMenu(), false)
	case err != nil:
		b.logger.Error("role change failed", "error", err)
		return b.reply(s.chatID, msgRoleFailed, adminMenu(), false)
	}

	// An admin who demoted themselves gets the menu of the new role.
	menu := adminMenu()
	if change.Handle == s.who.Handle && change.NewRole != identity.RoleAdmin {
		menu = menuFor(&identity.Identity{Role: change.NewRole})
	}

	return b.reply(s.chatID, fmt.Sprintf(msgRoleChanged, change.NewRole), menu, true)
}
