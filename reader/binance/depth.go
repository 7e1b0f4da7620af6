package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appconfig "orderbookflow/config"
	"orderbookflow/logger"
	"orderbookflow/models"
)

// DepthReader streams partial book depth frames from the Binance websocket
// feed and forwards them to the raw channel. The connection is owned by the
// reader and closed when the context is cancelled; transport errors drive
// the reconnect policy, never the process lifecycle.
type DepthReader struct {
	config  *appconfig.Config
	rawChan chan<- models.RawDepthMessage
	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

// NewDepthReader creates a reader for the configured depth stream.
func NewDepthReader(cfg *appconfig.Config, rawChan chan<- models.RawDepthMessage) *DepthReader {
	return &DepthReader{
		config:  cfg,
		rawChan: rawChan,
		wg:      &sync.WaitGroup{},
		log:     logger.GetLogger(),
	}
}

// Start launches the stream worker.
func (r *DepthReader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("depth reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	log := r.log.WithComponent("depth_reader").WithFields(logger.Fields{"operation": "start"})
	log.WithFields(logger.Fields{
		"url":    r.config.Feed.URL,
		"symbol": r.config.Feed.Symbol,
	}).Info("starting depth reader")

	r.wg.Add(1)
	go r.stream()

	log.Info("depth reader started successfully")
	return nil
}

// Stop waits until the stream worker has released the connection.
func (r *DepthReader) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("depth_reader").Info("stopping depth reader")
	r.wg.Wait()
	r.log.WithComponent("depth_reader").Info("depth reader stopped")
}

// stream runs the connect/read/reconnect cycle until the context ends.
func (r *DepthReader) stream() {
	defer r.wg.Done()

	log := r.log.WithComponent("depth_reader").WithFields(logger.Fields{"worker": "depth_stream"})

	policy := newReconnectPolicy(
		r.config.Feed.Reconnect.BaseDelay.Std(),
		r.config.Feed.Reconnect.MaxDelay.Std(),
	)

	for {
		if r.ctx.Err() != nil {
			return
		}

		policy.connecting()
		conn, err := r.dial()
		if err != nil {
			log.WithError(err).Warn("failed to connect to depth stream")
			if !r.sleep(policy.failure()) {
				return
			}
			continue
		}

		policy.streamOpened()
		log.WithFields(logger.Fields{"url": r.config.Feed.URL}).Info("connected to depth stream")

		err = r.readLoop(conn)
		conn.Close()
		if r.ctx.Err() != nil {
			return
		}

		// Close frames and read timeouts reconnect like any other
		// transport error; the stream is expected to be long-lived.
		logger.IncrementReconnect()
		delay := policy.failure()
		log.WithError(err).WithFields(logger.Fields{
			"state": policy.state.String(),
			"delay": delay.String(),
		}).Warn("depth stream disconnected, reconnecting")

		if !r.sleep(delay) {
			return
		}
	}
}

func (r *DepthReader) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: r.config.Feed.HandshakeTimeout.Std(),
	}

	conn, _, err := dialer.DialContext(r.ctx, r.config.Feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.config.Feed.URL, err)
	}
	return conn, nil
}

// readLoop forwards frames until a transport error occurs. The send into the
// raw channel blocks, so the loop inherits the ingestor's backpressure.
func (r *DepthReader) readLoop(conn *websocket.Conn) error {
	// Unblock pending reads when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-r.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	readTimeout := r.config.Feed.ReadTimeout.Std()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read depth frame: %w", err)
		}

		logger.IncrementFrameRead()

		msg := models.RawDepthMessage{
			Data:      data,
			Timestamp: time.Now().UTC(),
		}

		select {
		case r.rawChan <- msg:
		case <-r.ctx.Done():
			return r.ctx.Err()
		}
	}
}

// sleep waits for the backoff delay, returning false when the context ended.
func (r *DepthReader) sleep(delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-r.ctx.Done():
		return false
	}
}
