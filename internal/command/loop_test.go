package command

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hil-labs/wireship/internal/domain"
	"github.com/hil-labs/wireship/internal/serialport"
	"github.com/hil-labs/wireship/internal/session"
	"github.com/hil-labs/wireship/pkg/log"
)

// fakeSource mirrors a serial port: drains pushed bytes, then idles like a
// read timeout.
type fakeSource struct {
	mu   sync.Mutex
	data []byte
}

func (s *fakeSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return 0, nil
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) Push(b []byte) {
	s.mu.Lock()
	s.data = append(s.data, b...)
	s.mu.Unlock()
}

type harness struct {
	src  *fakeSource
	ctrl *session.Controller

	in   *io.PipeWriter
	out  *bufio.Scanner
	outR *io.PipeReader

	done    chan struct{}
	loopErr error
}

// newHarness wires a full daemon stack (controller + loop) around in-memory
// pipes and starts the loop.
func newHarness(t *testing.T, loopCfg Config) *harness {
	t.Helper()

	src := &fakeSource{}
	open := func(name string, baud int) (serialport.ByteSource, error) {
		return src, nil
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	writer := NewWriter(outW)
	ctrl := session.New(session.Config{
		PollInterval:   time.Millisecond,
		StopTimeout:    time.Second,
		StatusInterval: time.Hour, // keep unsolicited emissions out of tests
	}, open, nil, log.NewNoopLogger())

	loop := NewLoop(loopCfg, ctrl, writer, log.NewNoopLogger())

	h := &harness{
		src:  src,
		ctrl: ctrl,
		in:   inW,
		out:  bufio.NewScanner(outR),
		outR: outR,
		done: make(chan struct{}),
	}
	go func() {
		h.loopErr = loop.Run(inR)
		outW.Close()
		close(h.done)
	}()

	t.Cleanup(func() {
		inW.Close()
		// Drain whatever the loop writes on the way out (an implicit stop
		// ack when a session was still streaming) so it never stalls on the
		// output pipe.
		go io.Copy(io.Discard, h.outR)
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("loop did not exit")
		}
	})

	// Swallow the ready banner.
	resp := h.next(t)
	if resp["msg"] != "wireship daemon ready" {
		t.Fatalf("unexpected banner: %v", resp)
	}
	return h
}

func (h *harness) send(t *testing.T, line string) {
	t.Helper()
	if _, err := h.in.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func (h *harness) next(t *testing.T) map[string]any {
	t.Helper()
	if !h.out.Scan() {
		t.Fatalf("no response line: %v", h.out.Err())
	}
	var resp map[string]any
	if err := json.Unmarshal(h.out.Bytes(), &resp); err != nil {
		t.Fatalf("bad response %q: %v", h.out.Text(), err)
	}
	return resp
}

func (h *harness) waitForFrames(t *testing.T, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.ctrl.Status().Stats.FramesAccepted >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("frames never reached %d", n)
}

func wireFrame(seq uint32) []byte {
	f := domain.Frame{Seq: seq, TimestampMs: uint64(seq), SensorTemp: 2500}
	f.Checksum = f.ExpectedChecksum()
	return f.AppendWire(nil)
}

func TestOversizedLineKeepsLoopAlive(t *testing.T) {
	h := newHarness(t, Config{})

	// Far past bufio.Scanner's default 64KB token limit. Garbage of any
	// length is a malformed request, never a transport error.
	h.send(t, strings.Repeat("x", 128*1024))
	resp := h.next(t)
	if resp["status"] != "error" || !strings.HasPrefix(resp["msg"].(string), "Invalid JSON") {
		t.Fatalf("oversized line response: %v", resp)
	}

	h.send(t, `{"cmd":"status"}`)
	resp = h.next(t)
	if resp["status"] != "data" {
		t.Fatalf("loop did not continue after oversized line: %v", resp)
	}
}

func TestStartStopRoundTrip(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"start","port":"/dev/ttyACM0","baudrate":115200}`)
	resp := h.next(t)
	if resp["status"] != "ok" || resp["msg"] != "Started streaming on /dev/ttyACM0 @ 115200 baud" {
		t.Fatalf("start response: %v", resp)
	}

	h.src.Push(wireFrame(1))
	h.src.Push([]byte{0x42}) // one noise byte
	h.src.Push(wireFrame(2))
	h.waitForFrames(t, 2)

	h.send(t, `{"cmd":"stop"}`)
	resp = h.next(t)
	if resp["status"] != "ok" || resp["msg"] != "Stopped streaming" {
		t.Fatalf("stop response: %v", resp)
	}
	if resp["packets"].(float64) != 2 {
		t.Fatalf("stop packets: %v", resp["packets"])
	}
	if resp["errors"].(float64) != 1 {
		t.Fatalf("stop errors: %v", resp["errors"])
	}
}

func TestDoubleStartReturnsAlreadyRunning(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"start","port":"p","baudrate":9600}`)
	if resp := h.next(t); resp["status"] != "ok" {
		t.Fatalf("first start: %v", resp)
	}

	h.send(t, `{"cmd":"start","port":"p","baudrate":9600}`)
	resp := h.next(t)
	if resp["status"] != "error" || resp["msg"] != "Already running" {
		t.Fatalf("second start: %v", resp)
	}
}

func TestStopWithoutStart(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"stop"}`)
	resp := h.next(t)
	if resp["status"] != "error" || resp["msg"] != "Not running" {
		t.Fatalf("stop response: %v", resp)
	}
}

func TestStatusIdle(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"status"}`)
	resp := h.next(t)
	if resp["status"] != "data" {
		t.Fatalf("status response: %v", resp)
	}
	if resp["running"].(bool) {
		t.Fatal("idle daemon reported running")
	}
	for _, key := range []string{"packets", "bytes", "errors", "rate"} {
		if _, ok := resp[key]; !ok {
			t.Fatalf("status response missing %q: %v", key, resp)
		}
	}
}

func TestExportEmptyStore(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"export","format":"csv","output":"x.csv"}`)
	resp := h.next(t)
	if resp["status"] != "error" || resp["msg"] != "No data to export" {
		t.Fatalf("export response: %v", resp)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"export","format":"parquet","output":"x.parquet"}`)
	resp := h.next(t)
	if resp["status"] != "error" || resp["msg"] != "Unknown format: parquet" {
		t.Fatalf("export response: %v", resp)
	}
}

func TestExportWritesCSV(t *testing.T) {
	h := newHarness(t, Config{})
	out := filepath.Join(t.TempDir(), "data.csv")

	h.send(t, `{"cmd":"start","port":"p"}`)
	h.next(t)
	h.src.Push(wireFrame(1))
	h.waitForFrames(t, 1)
	h.send(t, `{"cmd":"stop"}`)
	h.next(t)

	h.send(t, `{"cmd":"export","format":"csv","output":"`+out+`"}`)
	resp := h.next(t)
	if resp["status"] != "ok" {
		t.Fatalf("export response: %v", resp)
	}
	if want := "Exported 1 packets to " + out; resp["msg"] != want {
		t.Fatalf("export msg: got %v want %q", resp["msg"], want)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "seq,timestamp_ms,") {
		t.Fatalf("export content: %q", string(data))
	}
}

func TestInvalidJSON(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":`)
	resp := h.next(t)
	if resp["status"] != "error" || !strings.HasPrefix(resp["msg"].(string), "Invalid JSON: ") {
		t.Fatalf("invalid json response: %v", resp)
	}

	// The loop keeps serving after a malformed line.
	h.send(t, `{"cmd":"status"}`)
	if resp := h.next(t); resp["status"] != "data" {
		t.Fatalf("loop dead after bad line: %v", resp)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"reboot"}`)
	resp := h.next(t)
	if resp["status"] != "error" || resp["msg"] != "Unknown command: reboot" {
		t.Fatalf("unknown command response: %v", resp)
	}
}

func TestQuitStopsStreamingFirst(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"start","port":"p"}`)
	h.next(t)
	h.src.Push(wireFrame(1))
	h.waitForFrames(t, 1)

	h.send(t, `{"cmd":"quit"}`)
	stop := h.next(t)
	if stop["status"] != "ok" || stop["msg"] != "Stopped streaming" {
		t.Fatalf("implicit stop response: %v", stop)
	}
	bye := h.next(t)
	if bye["status"] != "ok" || bye["msg"] != "Goodbye" {
		t.Fatalf("goodbye response: %v", bye)
	}

	select {
	case <-h.done:
		if h.loopErr != nil {
			t.Fatalf("loop returned error: %v", h.loopErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit after quit")
	}
	if h.ctrl.Status().Running {
		t.Fatal("session still running after quit")
	}
}

func TestEOFStopsStreaming(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"start","port":"p"}`)
	h.next(t)
	h.src.Push(wireFrame(1))
	h.waitForFrames(t, 1)

	h.in.Close()

	// The loop stops the session and reports its final counters on the way
	// out; the line must be drained or the output pipe would stall it.
	stop := h.next(t)
	if stop["msg"] != "Stopped streaming" {
		t.Fatalf("implicit stop response: %v", stop)
	}

	select {
	case <-h.done:
		if h.loopErr != nil {
			t.Fatalf("loop returned error on EOF: %v", h.loopErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit on EOF")
	}
	if h.ctrl.Status().Running {
		t.Fatal("session still running after EOF")
	}
}

func TestStartUsesConfiguredDefaults(t *testing.T) {
	h := newHarness(t, Config{DefaultPort: "/dev/ttyUSB7", DefaultBaud: 57600})

	h.send(t, `{"cmd":"start"}`)
	resp := h.next(t)
	if resp["status"] != "ok" || resp["msg"] != "Started streaming on /dev/ttyUSB7 @ 57600 baud" {
		t.Fatalf("start response: %v", resp)
	}
}

func TestStartWithoutPortOrDefault(t *testing.T) {
	h := newHarness(t, Config{})

	h.send(t, `{"cmd":"start"}`)
	resp := h.next(t)
	if resp["status"] != "error" || resp["msg"] != "No port specified" {
		t.Fatalf("start response: %v", resp)
	}
}
