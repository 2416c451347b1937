package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"lms-test-service/internal/app"
	"lms-test-service/internal/domain"
)

// WSHandler runs one live test attempt per websocket connection.
type WSHandler struct {
	service  *app.TestService
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.TestService, logger *log.Logger) *WSHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Option     int    `json:"option"`
}

type startedPayload struct {
	Snapshot  domain.SessionSnapshot  `json:"snapshot"`
	Questions []domain.PublicQuestion `json:"questions"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives a test attempt over the socket.
// Messages out: started, tick, result, error. Messages in: answer, submit.
// Dropping the connection closes the attempt without saving it.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	testID := r.URL.Query().Get("testId")
	agreed := r.URL.Query().Get("agree") == "true"
	if testID == "" {
		http.Error(w, "missing testId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.StartTest(r.Context(), testID, agreed)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer session.Close()

	updates, cancel := session.Subscribe()
	defer cancel()
	initial := <-updates

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				typ := "tick"
				if snap.Phase == domain.PhaseSubmitted {
					typ = "result"
				}
				select {
				case send <- outboundMessage[any]{Type: typ, Payload: snap}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	questions := session.Questions()
	public := make([]domain.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		public = append(public, q.Public())
	}
	push(outboundMessage[any]{Type: "started", Payload: startedPayload{Snapshot: initial, Questions: public}})
	if initial.Phase == domain.PhaseSubmitted {
		push(outboundMessage[any]{Type: "result", Payload: initial})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			if !session.RecordAnswer(payload.QuestionID, payload.Option) {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "answer not recorded"}})
			}
		case "submit":
			// the result reaches the client through the final snapshot
			session.Submit()
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
