// Package command implements the line-oriented JSON protocol that drives the
// session controller: one request object per line on stdin, one response
// object per line on stdout.
package command

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/hil-labs/wireship/internal/session"
	"github.com/hil-labs/wireship/internal/telemetry"
)

// Request is one decoded command line. Cmd is the dispatch tag; the
// remaining fields are only meaningful for the commands that use them.
type Request struct {
	Cmd      string `json:"cmd"`
	Port     string `json:"port,omitempty"`
	Baudrate int    `json:"baudrate,omitempty"`
	Record   string `json:"record,omitempty"`
	Format   string `json:"format,omitempty"`
	Output   string `json:"output,omitempty"`
}

// decodeRequest parses one request line.
func decodeRequest(line string) (Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

type ack struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

type stopAck struct {
	Status  string `json:"status"`
	Msg     string `json:"msg"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
	Errors  uint64 `json:"errors"`
}

type dataResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
	Errors  uint64 `json:"errors"`
	Rate    uint64 `json:"rate"`
}

// Writer serializes response lines. Both the command loop and the periodic
// status emitter write through it, so lines never interleave.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriter creates a Writer emitting one JSON object per line on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// OK writes an ok response with the given message.
func (w *Writer) OK(msg string) error {
	return w.write(ack{Status: "ok", Msg: msg})
}

// Error writes an error response with the given message.
func (w *Writer) Error(msg string) error {
	return w.write(ack{Status: "error", Msg: msg})
}

// Stopped writes the ok response for a clean stop, carrying the final
// session counters.
func (w *Writer) Stopped(snap telemetry.Snapshot) error {
	return w.write(stopAck{
		Status:  "ok",
		Msg:     "Stopped streaming",
		Packets: snap.FramesAccepted,
		Bytes:   snap.BytesReceived,
		Errors:  snap.Errors(),
	})
}

// StoppedWithError writes the error response for a stop that completed with
// a problem (join timeout, mid-stream source failure, record write failure).
// The accumulated counters are still reported.
func (w *Writer) StoppedWithError(msg string, snap telemetry.Snapshot) error {
	return w.write(stopAck{
		Status:  "error",
		Msg:     msg,
		Packets: snap.FramesAccepted,
		Bytes:   snap.BytesReceived,
		Errors:  snap.Errors(),
	})
}

// Data writes a status data response.
func (w *Writer) Data(st session.Status) error {
	return w.write(dataResponse{
		Status:  "data",
		Running: st.Running,
		Packets: st.Stats.FramesAccepted,
		Bytes:   st.Stats.BytesReceived,
		Errors:  st.Stats.Errors(),
		Rate:    st.Stats.Rate,
	})
}
