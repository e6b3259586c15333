package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopDiscordSyncer logs role changes without calling Discord. Used until a
// creator connects a guild.
type NoopDiscordSyncer struct {
	Log *slog.Logger
}

func (s NoopDiscordSyncer) SyncMemberRole(ctx context.Context, creatorID, fanID uuid.UUID, active bool) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "discord_role_sync_skipped",
		slog.String("creator_id", creatorID.String()),
		slog.String("fan_id", fanID.String()),
		slog.Bool("active", active),
	)
	return nil
}
