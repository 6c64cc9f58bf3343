// Package allyspeech speaks the Ally speech service websocket protocol.
//
// Every frame in both directions is a JSON envelope:
//
//	{"command": "...", "payload": {...}, "timestamp": ...}
//
// The client submits synthesis requests (`synthesize_speech`, `stop_tts`) and
// translates the service's stream lifecycle responses (`tts_stream_start`,
// `tts_stream_chunk`, `tts_stream_complete`, `tts_stream_error`, plus the
// legacy single-shot `speech_generated`/`speech_error` pair) into
// [synthesis.Event] values delivered in arrival order.
package allyspeech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allybot/ally-core/core/synthesis"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Client struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	options synthesis.SynthesisOptions

	closed sync.Once
	done   chan struct{}
}

type envelope struct {
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp float64         `json:"timestamp"`
}

type requestPayload struct {
	Text      string `json:"text,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Streaming bool   `json:"streaming,omitempty"`
}

type responsePayload struct {
	MessageID      string `json:"message_id"`
	Text           string `json:"text"`
	AudioData      string `json:"audio_data"`
	ChunkIndex     int    `json:"chunk_index"`
	TotalChunks    int    `json:"total_chunks"`
	TotalSentences int    `json:"total_sentences"`
	IsFinal        bool   `json:"is_final"`
	Error          string `json:"error"`
}

func NewClient(ctx context.Context, serviceURL string, opts ...synthesis.SynthesisOption) (*Client, error) {
	client := &Client{
		options: synthesis.SynthesisOptions{
			EventCallback: func(synthesis.Event) {},
			ErrorCallback: func(error) {},
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&client.options)
	}

	var err error
	if client.ws, _, err = websocket.DefaultDialer.DialContext(ctx, serviceURL, nil); err != nil {
		return nil, fmt.Errorf("failed to connect to speech service: %w", err)
	}

	go client.processIncomingMessages()

	return client, nil
}

// Synthesize submits text for streaming synthesis under streamID. The service
// echoes the id back as message_id on every lifecycle event.
func (c *Client) Synthesize(ctx context.Context, text, streamID string) error {
	if text == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(attribute.String("synthesis.stream_id", streamID), attribute.Int("synthesis.text_length", len(text)))

	err := c.send(ctx, "synthesize_speech", requestPayload{
		Text:      text,
		MessageID: streamID,
		Streaming: true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// CancelAll asks the service to stop the synthesis in progress and drop its
// queue. Events already in flight may still arrive afterwards.
func (c *Client) CancelAll(ctx context.Context) error {
	return c.send(ctx, "stop_tts", requestPayload{})
}

func (c *Client) Close() error {
	var err error
	c.closed.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *Client) send(ctx context.Context, command string, payload requestPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return fmt.Errorf("speech service client closed")
	default:
	}

	frame, err := json.Marshal(struct {
		Command   string         `json:"command"`
		Payload   requestPayload `json:"payload"`
		Timestamp float64        `json:"timestamp"`
	}{Command: command, Payload: payload, Timestamp: float64(time.Now().UnixNano()) / float64(time.Second)})
	if err != nil {
		return fmt.Errorf("failed to marshal %s command: %w", command, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send %s command: %w", command, err)
	}
	return nil
}

func (c *Client) processIncomingMessages() {
	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					c.options.ErrorCallback(fmt.Errorf("speech service connection lost: %w", err))
				}
			}
			return
		}

		var msg envelope
		if err := json.Unmarshal(frame, &msg); err != nil {
			logger.Warn("dropping malformed speech service frame", "error", err)
			continue
		}

		if event, ok := decodeEvent(msg); ok {
			c.options.EventCallback(event)
		}
	}
}

// decodeEvent maps one service envelope onto a synthesis event. Unknown
// commands (status responses, listening acknowledgements) are skipped.
func decodeEvent(msg envelope) (synthesis.Event, bool) {
	var payload responsePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			logger.Warn("dropping speech service frame with malformed payload", "command", msg.Command, "error", err)
			return nil, false
		}
	}

	id := payload.MessageID
	if id == "" {
		id = synthesis.DefaultStreamID
	}

	switch msg.Command {
	case "tts_stream_start":
		return synthesis.StreamStarted{ID: id, Text: payload.Text, TotalSentences: payload.TotalSentences}, true
	case "tts_stream_chunk":
		return synthesis.StreamChunk{
			ID:          id,
			Index:       payload.ChunkIndex,
			TotalChunks: payload.TotalChunks,
			AudioData:   payload.AudioData,
			Text:        payload.Text,
			IsFinal:     payload.IsFinal,
		}, true
	case "tts_stream_complete":
		return synthesis.StreamCompleted{ID: id, TotalChunks: payload.TotalChunks}, true
	case "tts_stream_error":
		return synthesis.StreamFailed{ID: id, Err: errors.New(payload.Error)}, true
	case "speech_generated":
		// Legacy single-shot synthesis: surface it as a one-chunk stream so
		// downstream scheduling does not need a second path.
		return synthesis.StreamChunk{ID: id, TotalChunks: 1, AudioData: payload.AudioData, Text: payload.Text, IsFinal: true}, true
	case "speech_error":
		return synthesis.StreamFailed{ID: id, Err: errors.New(payload.Error)}, true
	}

	return nil, false
}
