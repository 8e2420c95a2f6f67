package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/arcadehub/apiserver/internal/cache"
	"github.com/arcadehub/apiserver/internal/mq"
	"github.com/arcadehub/apiserver/internal/services"
	"github.com/arcadehub/apiserver/internal/ws"
	"github.com/arcadehub/apiserver/types"
)

const fanoutTimeout = 10 * time.Second

// scoreEventFanout reacts to committed score submissions: it publishes
// the event on the queue, drops the stale cached leaderboard views, and
// pushes the refreshed views to websocket subscribers. Every step is
// best-effort; the submission itself already committed.
type scoreEventFanout struct {
	queue        *mq.MQ
	topic        string
	cache        *cache.LeaderboardCache
	leaderboards *services.LeaderboardService
	hub          *ws.Hub
	logger       *slog.Logger
}

func newScoreEventFanout(
	queue *mq.MQ,
	topic string,
	cache *cache.LeaderboardCache,
	leaderboards *services.LeaderboardService,
	hub *ws.Hub,
	logger *slog.Logger,
) *scoreEventFanout {
	return &scoreEventFanout{
		queue:        queue,
		topic:        topic,
		cache:        cache,
		leaderboards: leaderboards,
		hub:          hub,
		logger:       logger,
	}
}

// ScoreSubmitted implements services.ScoreEventSink.
func (f *scoreEventFanout) ScoreSubmitted(ctx context.Context, event types.ScoreEvent) {
	// Detach from the request context so a client disconnect does not
	// cut the fan-out short.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fanoutTimeout)
	defer cancel()

	if f.queue != nil {
		data, err := json.Marshal(event)
		if err != nil {
			f.logger.Error("failed to encode score event", "error", err)
		} else {
			attrs := map[string]string{
				"event_id": event.EventID,
				"game_id":  strconv.Itoa(event.GameID),
			}
			if _, err := f.queue.Publish(ctx, f.topic, data, attrs); err != nil {
				f.logger.Warn("failed to publish score event", "event_id", event.EventID, "error", err)
			}
		}
	}

	if f.cache != nil {
		f.cache.Invalidate(ctx, event.GameID)
	}

	for _, gameID := range []int{event.GameID, 0} {
		entries, err := f.leaderboards.Top(ctx, gameID)
		if err != nil {
			f.logger.Warn("leaderboard refresh failed", "game_id", gameID, "error", err)
			continue
		}
		f.hub.BroadcastLeaderboard(gameID, entries)
	}
}
