package handler

import (
	"context"
	"fmt"
	"log/slog"
)

// handleSweep runs an idle-session sweep on demand.
func (h *Handler) handleSweep(ctx context.Context, chatID int64) {
	n, err := h.conversation.SweepExpired(ctx)
	if err != nil {
		slog.Error("manual sweep", "chat_id", chatID, "error", err)
		h.render(ctx, chatID, nil, failureReply)
		return
	}
	slog.Info("manual sweep done", "chat_id", chatID, "cleared", n)
	if err := h.send(ctx, chatID, fmt.Sprintf(sweepDoneText, n)); err != nil {
		slog.Error("send sweep result", "chat_id", chatID, "error", err)
	}
}
