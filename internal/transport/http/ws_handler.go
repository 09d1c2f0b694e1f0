package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

type WSHandler struct {
	service      *app.QuizService
	upgrader     websocket.Upgrader
	pollInterval time.Duration
	log          zerolog.Logger
}

func NewWSHandler(service *app.QuizService, pollInterval time.Duration, log zerolog.Logger) *WSHandler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pollInterval: pollInterval,
		log:          log.With().Str("component", "ws").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Index    int    `json:"index"`
	Response string `json:"response"`
}

type movePayload struct {
	Delta int `json:"delta"`
}

type remainingPayload struct {
	RemainingSeconds int `json:"remaining_seconds"`
}

type submittedPayload struct {
	Result domain.Result `json:"result"`
	Forced bool          `json:"forced"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

func errorMessage(err error) outboundMessage[any] {
	_, code := classify(err)
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: code, Message: err.Error()}}
}

// ServeWS upgrades HTTP requests to websockets and drives one attempt over
// the connection. A watcher polls the remaining time and submits the attempt
// when it runs out.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	attemptID := r.URL.Query().Get("attemptId")
	if attemptID == "" {
		http.Error(w, "missing attemptId", http.StatusBadRequest)
		return
	}
	attempt, err := h.service.GetAttempt(r.Context(), attemptID)
	if err != nil {
		status, _ := classify(err)
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	watcherDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("ws write error")
				return
			}
		}
	}()

	emit := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-closeSignals:
			return false
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(watcherDone)
		ticker := time.NewTicker(h.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				submitted, result, err := h.service.SubmitIfExpired(ctx, attemptID)
				if err != nil {
					emit(errorMessage(err))
					return
				}
				if result != nil {
					h.log.Info().Str("attempt_id", attemptID).Msg("attempt auto-submitted on expiry")
					emit(outboundMessage[any]{Type: "submitted", Payload: submittedPayload{Result: *result, Forced: true}})
					return
				}
				if submitted.State == domain.Submitted {
					return
				}
				remaining := h.service.Engine().RemainingSeconds(submitted)
				if !emit(outboundMessage[any]{Type: "remaining", Payload: remainingPayload{RemainingSeconds: remaining}}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	emit(outboundMessage[any]{Type: "attempt", Payload: newAttemptView(attempt, h.service.Engine().RemainingSeconds(attempt))})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "validation", Message: "invalid answer payload"}})
				continue
			}
			updated, err := h.service.Answer(ctx, attemptID, payload.Index, payload.Response)
			if err != nil {
				emit(errorMessage(err))
				continue
			}
			emit(outboundMessage[any]{Type: "attempt", Payload: newAttemptView(updated, h.service.Engine().RemainingSeconds(updated))})
		case "move":
			var payload movePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "validation", Message: "invalid move payload"}})
				continue
			}
			updated, err := h.service.Move(ctx, attemptID, payload.Delta)
			if err != nil {
				emit(errorMessage(err))
				continue
			}
			emit(outboundMessage[any]{Type: "attempt", Payload: newAttemptView(updated, h.service.Engine().RemainingSeconds(updated))})
		case "remaining":
			remaining, err := h.service.Remaining(ctx, attemptID)
			if err != nil {
				emit(errorMessage(err))
				continue
			}
			emit(outboundMessage[any]{Type: "remaining", Payload: remainingPayload{RemainingSeconds: remaining}})
		case "submit":
			_, result, err := h.service.Submit(ctx, attemptID)
			if err != nil {
				emit(errorMessage(err))
				continue
			}
			emit(outboundMessage[any]{Type: "submitted", Payload: submittedPayload{Result: result, Forced: result.Forced}})
		default:
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "validation", Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-watcherDone
	close(send)
	<-writerDone
}

// ServeLeaderboard streams leaderboard snapshots for one quiz until the
// client disconnects.
func (h *WSHandler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.service.SubscribeLeaderboard(r.Context(), quizID)
	if err != nil {
		status, _ := classify(err)
		http.Error(w, err.Error(), status)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case lb, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: lb}); err != nil {
				h.log.Warn().Err(err).Str("quiz_id", quizID).Msg("ws write error")
				return
			}
		case <-readerDone:
			return
		}
	}
}
