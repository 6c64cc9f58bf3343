package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/allybot/ally-core/core/inference"
	"github.com/jinzhu/copier"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const chatPath = "/api/chat"

// Client streams chat completions from an Ollama-compatible endpoint. The
// wire format is a sequence of newline-delimited JSON objects, each carrying
// an incremental message content and a done flag.
type Client struct {
	endpoint string
	model    string
}

func NewClient(endpoint, model string) *Client {
	return &Client{endpoint: endpoint, model: model}
}

func (c *Client) ChatStream(_ context.Context, messages []inference.Message) inference.Stream {
	stream := &Stream{
		endpoint: c.endpoint,
		model:    c.model,
	}
	copier.Copy(&stream.messages, messages)
	return stream
}

type Stream struct {
	endpoint string
	model    string
	messages []inference.Message
}

type chatRequestBody struct {
	Model    string              `json:"model"`
	Messages []inference.Message `json:"messages"`
	Stream   bool                `json:"stream"`
}

type chatResponseLine struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func (s *Stream) Chunks(ctx context.Context) func(func(inference.StreamChunk, error) bool) {
	requestToFirstTokenTime := time.Time{}
	setRequestToFirstTokenTime := func(span trace.Span) {
		if requestToFirstTokenTime.IsZero() {
			return
		}
		span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestToFirstTokenTime).Seconds()))
		span.AddEvent("received first chunk")
		requestToFirstTokenTime = time.Time{}
	}

	return func(yield func(inference.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "stream chat completion")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.model))
		span.SetAttributes(attribute.Int("request.message_count", len(s.messages)))

		requestBodyBytes, err := json.Marshal(chatRequestBody{
			Model:    s.model,
			Messages: s.messages,
			Stream:   true,
		})
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			yield(inference.StreamChunk{}, err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+chatPath, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			yield(inference.StreamChunk{}, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
		requestToFirstTokenTime = time.Now()
		span.AddEvent("request started")
		resp, err := client.Do(req)
		if err != nil {
			err = fmt.Errorf("error sending request: %w", err)
			span.RecordError(err)
			yield(inference.StreamChunk{}, err)
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, err := io.ReadAll(resp.Body); err != nil {
				span.RecordError(fmt.Errorf("error reading error body: %w", err))
			} else {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}

			err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
			span.RecordError(err)
			yield(inference.StreamChunk{}, err)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			setRequestToFirstTokenTime(span)

			if len(line) == 0 {
				continue
			}

			var responseLine chatResponseLine
			if err := json.Unmarshal(line, &responseLine); err != nil {
				err = fmt.Errorf("error unmarshalling JSON: %w", err)
				span.RecordError(err)
				if !yield(inference.StreamChunk{}, err) {
					return
				}
				continue
			}

			if !yield(inference.StreamChunk{
				Content: responseLine.Message.Content,
				Done:    responseLine.Done,
			}, nil) {
				return
			}

			if responseLine.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(inference.StreamChunk{}, fmt.Errorf("error reading streamed response: %w", err))
			return
		}

		// The transport closed without a done marker. Surface a terminal
		// chunk anyway so consumers never hang on a truncated stream.
		yield(inference.StreamChunk{Done: true}, nil)
	}
}
