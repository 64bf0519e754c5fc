package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"

	"btrader/internal/exchange/common"
	"btrader/internal/infra/metrics"
	"btrader/internal/infra/network"
)

const maxRetries = 6

// partial book depths accepted by the combined stream
var streamDepths = []int{5, 10, 20}

type combinedFrame struct {
	Stream string        `json:"stream"`
	Data   depthResponse `json:"data"`
}

// Stream subscribes to the partial depth stream of every symbol and pushes
// each frame as a full book replacement stamped with the receive time.
// Symbols are spread over connections of at most streamsPerConn streams.
func (a *Adapter) Stream(ctx context.Context, symbols []string, out chan<- common.DepthUpdate) error {
	if len(symbols) == 0 {
		return errors.New("stream: no symbols")
	}
	depth := streamDepth(a.depth)
	var wg sync.WaitGroup
	for start := 0; start < len(symbols); start += a.streamsPerConn {
		end := start + a.streamsPerConn
		if end > len(symbols) {
			end = len(symbols)
		}
		bySymbol := make(map[string]string, end-start)
		names := make([]string, 0, end-start)
		for _, s := range symbols[start:end] {
			name := fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(s), depth)
			bySymbol[name] = s
			names = append(names, name)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.connectionLoop(ctx, names, bySymbol, out)
		}()
	}
	wg.Wait()
	return nil
}

func streamDepth(depth int) int {
	for _, d := range streamDepths {
		if depth <= d {
			return d
		}
	}
	return streamDepths[len(streamDepths)-1]
}

func (a *Adapter) connectionLoop(ctx context.Context, names []string, bySymbol map[string]string, out chan<- common.DepthUpdate) {
	url := a.wsURL + "/stream?streams=" + strings.Join(names, "/")
	retryCount := 0
	for {
		if ctx.Err() != nil {
			return
		}
		frames, err := a.readStream(ctx, url, bySymbol, out)
		if ctx.Err() != nil {
			return
		}
		reason := "read"
		var dialErr *dialError
		if errors.As(err, &dialErr) {
			reason = "dial"
		}
		metrics.WSReconnectsTotal.WithLabelValues(a.Name(), reason).Inc()
		if frames > 0 {
			retryCount = 0
		}
		delay := network.CalculateBackoff(retryCount)
		a.logger.Warn().Err(err).Int("retry", retryCount).Dur("delay", delay).Msg("depth stream disconnected")
		retryCount++
		if retryCount > maxRetries {
			retryCount = maxRetries
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

type dialError struct{ err error }

func (e *dialError) Error() string { return "dial: " + e.err.Error() }
func (e *dialError) Unwrap() error { return e.err }

// readStream runs one connection and returns the number of frames delivered.
func (a *Adapter) readStream(ctx context.Context, url string, bySymbol map[string]string, out chan<- common.DepthUpdate) (int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, &dialError{err: err}
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	a.logger.Info().Int("streams", len(bySymbol)).Msg("depth stream connected")

	frames := 0
	for {
		_ = conn.SetReadDeadline(time.Now().Add(a.readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return frames, err
		}
		var f combinedFrame
		if err := sonnet.Unmarshal(msg, &f); err != nil {
			metrics.BookRejectsTotal.WithLabelValues(a.Name(), "decode").Inc()
			continue
		}
		symbol, ok := bySymbol[f.Stream]
		if !ok {
			continue
		}
		u, err := toUpdate(symbol, float64(a.now().UnixMilli()), f.Data.Asks, f.Data.Bids)
		if err != nil {
			metrics.BookRejectsTotal.WithLabelValues(a.Name(), "parse").Inc()
			a.logger.Debug().Err(err).Str("symbol", symbol).Msg("bad depth frame")
			continue
		}
		select {
		case out <- u:
			frames++
		case <-ctx.Done():
			return frames, ctx.Err()
		}
	}
}
