package push

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

// heartbeatEOL is the STOMP heart-beat sent as its own websocket message.
var heartbeatEOL = []byte("\n")

// encodeFrame renders f in STOMP wire format.
func encodeFrame(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeFrames parses every frame carried by one websocket message.
// Heart-beats yield no frames.
func decodeFrames(data []byte) ([]*frame.Frame, error) {
	var frames []*frame.Frame
	r := frame.NewReader(bytes.NewReader(data))
	for {
		f, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, err
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
}

// formatHeartBeat renders the heart-beat header value "<send>,<receive>" in ms.
func formatHeartBeat(send, receive time.Duration) string {
	return fmt.Sprintf("%d,%d", send.Milliseconds(), receive.Milliseconds())
}

// parseHeartBeat parses a heart-beat header value. An absent header means 0,0.
func parseHeartBeat(value string) (send, receive time.Duration, err error) {
	if value == "" {
		return 0, 0, nil
	}
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid heart-beat header %q", value)
	}
	sx, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || sx < 0 {
		return 0, 0, fmt.Errorf("invalid heart-beat header %q", value)
	}
	sy, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || sy < 0 {
		return 0, 0, fmt.Errorf("invalid heart-beat header %q", value)
	}
	return time.Duration(sx) * time.Millisecond, time.Duration(sy) * time.Millisecond, nil
}

// negotiate applies the STOMP heart-beat rule: each direction runs at the
// slower of the two peers' values, or not at all if either side said 0.
func negotiate(mine, theirs time.Duration) time.Duration {
	if mine == 0 || theirs == 0 {
		return 0
	}
	if theirs > mine {
		return theirs
	}
	return mine
}
