package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxLoggedBody bounds how much of an MCP request is buffered for logging.
const maxLoggedBody = 64 << 10

// MCPRequestLogger returns middleware that logs MCP tool calls with their
// schema_type argument and whether the JSON-RPC response carried an error.
// Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			call := peekToolCall(r, logger)

			recorder := &mcpResponseRecorder{ResponseWriter: w, body: &bytes.Buffer{}}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			if call.Method != "tools/call" {
				return
			}

			fields := []zap.Field{
				zap.String("tool", call.Params.Name),
				zap.String("schema_type", call.Params.Arguments.SchemaType),
				zap.Duration("duration", time.Since(start)),
			}
			if rpcErr := parseRPCError(recorder.body.Bytes()); rpcErr != nil {
				logger.Warn("MCP tool call failed",
					append(fields, zap.Int("error_code", rpcErr.Code), zap.String("error_message", rpcErr.Message))...)
				return
			}
			logger.Info("MCP tool call", fields...)
		})
	}
}

// jsonRPCRequest is the subset of a tools/call request that gets logged.
type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string `json:"name"`
		Arguments struct {
			SchemaType string `json:"schema_type"`
		} `json:"arguments"`
	} `json:"params"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// peekToolCall reads the request body and restores it for the next handler.
func peekToolCall(r *http.Request, logger *zap.Logger) jsonRPCRequest {
	var call jsonRPCRequest
	if r.Body == nil || r.Method != http.MethodPost {
		return call
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
	if err != nil {
		logger.Error("Failed to read MCP request body", zap.Error(err))
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

	if err := json.Unmarshal(body, &call); err != nil {
		logger.Debug("MCP request is not a single JSON-RPC call", zap.Error(err))
	}
	return call
}

// parseRPCError extracts the JSON-RPC error from a plain JSON body or from
// the last data line of an SSE stream.
func parseRPCError(body []byte) *jsonRPCError {
	payload := bytes.TrimSpace(body)
	if i := bytes.LastIndex(payload, []byte("data:")); i >= 0 {
		payload = bytes.TrimSpace(payload[i+len("data:"):])
	}
	var resp struct {
		Error *jsonRPCError `json:"error"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil
	}
	return resp.Error
}

// mcpResponseRecorder tees the response body for inspection.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	if r.body.Len() < maxLoggedBody {
		r.body.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

func (r *mcpResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
