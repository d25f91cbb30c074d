package ws

import (
	"context"
	"encoding/json"
	"time"

	"fieldbox/internal/service"

	"go.uber.org/zap"
)

// CommandHandler executes board commands arriving over the socket, so a
// dispatcher can drag cards without a round-trip through the REST surface.
type CommandHandler struct {
	lifecycle *service.LifecycleService
	board     *service.BoardService
	log       *zap.Logger
}

func NewCommandHandler(lifecycle *service.LifecycleService, board *service.BoardService, log *zap.Logger) *CommandHandler {
	return &CommandHandler{
		lifecycle: lifecycle,
		board:     board,
		log:       log,
	}
}

// HandleCommand dispatches one command message.
func (h *CommandHandler) HandleCommand(ctx context.Context, conn *Conn, cmd map[string]interface{}) {
	op, _ := cmd["op"].(string)
	data, _ := cmd["data"].(map[string]interface{})
	msgID, _ := cmd["id"].(string)

	switch op {
	case "assignRequest":
		h.handleAssign(ctx, conn, msgID, data)
	case "unassignRequest":
		h.handleUnassign(ctx, conn, msgID, data)
	case "getRequest":
		h.handleGetRequest(ctx, conn, msgID, data)
	case "getQueue":
		h.handleGetQueue(ctx, conn, msgID)
	case "getGrid":
		h.handleGetGrid(ctx, conn, msgID, data)
	default:
		h.sendError(conn, msgID, "unknown_command", "Unknown command: "+op)
	}
}

func (h *CommandHandler) handleAssign(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	requestID, _ := data["requestId"].(string)
	technicianID, _ := data["technicianId"].(string)
	date, _ := data["date"].(string)

	if requestID == "" || technicianID == "" || date == "" {
		h.sendError(conn, msgID, "invalid_input", "requestId, technicianId and date required")
		return
	}

	req, err := h.board.Assign(ctx, requestID, technicianID, date)
	if err != nil {
		h.sendError(conn, msgID, "assign_failed", err.Error())
		return
	}

	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": map[string]interface{}{
			"requestId": req.ID,
			"status":    req.Status,
		},
	})
}

func (h *CommandHandler) handleUnassign(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	requestID, _ := data["requestId"].(string)
	if requestID == "" {
		h.sendError(conn, msgID, "invalid_input", "requestId required")
		return
	}

	req, err := h.board.Unassign(ctx, requestID)
	if err != nil {
		h.sendError(conn, msgID, "unassign_failed", err.Error())
		return
	}

	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": map[string]interface{}{
			"requestId": req.ID,
			"status":    req.Status,
		},
	})
}

func (h *CommandHandler) handleGetRequest(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	requestID, _ := data["requestId"].(string)
	if requestID == "" {
		h.sendError(conn, msgID, "invalid_input", "requestId required")
		return
	}

	req, err := h.lifecycle.GetRequest(ctx, requestID)
	if err != nil {
		h.sendError(conn, msgID, "not_found", err.Error())
		return
	}

	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": req,
	})
}

func (h *CommandHandler) handleGetQueue(ctx context.Context, conn *Conn, msgID string) {
	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": h.board.Queue(ctx),
	})
}

func (h *CommandHandler) handleGetGrid(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	anchor := time.Now().UTC()
	if anchorStr, ok := data["anchor"].(string); ok && anchorStr != "" {
		t, err := time.Parse("2006-01-02", anchorStr)
		if err != nil {
			h.sendError(conn, msgID, "invalid_input", "anchor must be a YYYY-MM-DD date")
			return
		}
		anchor = t
	}

	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": h.board.Grid(ctx, anchor),
	})
}

func (h *CommandHandler) sendResponse(conn *Conn, msgID string, response map[string]interface{}) {
	if msgID != "" {
		response["id"] = msgID
	}
	msg, _ := json.Marshal(response)
	select {
	case conn.send <- msg:
	default:
		h.log.Warn("failed to send response, channel full")
	}
}

func (h *CommandHandler) sendError(conn *Conn, msgID, code, message string) {
	errMsg := map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	}
	if msgID != "" {
		errMsg["id"] = msgID
	}
	msg, _ := json.Marshal(errMsg)
	select {
	case conn.send <- msg:
	default:
		h.log.Warn("failed to send error, channel full")
	}
}
