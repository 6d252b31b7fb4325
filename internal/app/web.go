// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/relabs-tech/tilt_computer/internal/config"
	"github.com/relabs-tech/tilt_computer/internal/imu"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network tool
	},
}

// recordCache keeps the latest record and fans updates out to websocket
// clients. Slow clients miss updates rather than block the MQTT handler.
type recordCache struct {
	mu   sync.RWMutex
	rec  imu.OutputRecord
	have bool
	subs map[chan imu.OutputRecord]struct{}
}

func newRecordCache() *recordCache {
	return &recordCache{subs: make(map[chan imu.OutputRecord]struct{})}
}

func (c *recordCache) Update(rec imu.OutputRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec = rec
	c.have = true
	for ch := range c.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

func (c *recordCache) Latest() (imu.OutputRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rec, c.have
}

// Subscribe returns a channel of future updates and a func to release it.
func (c *recordCache) Subscribe() (<-chan imu.OutputRecord, func()) {
	ch := make(chan imu.OutputRecord, 4)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
	}
}

// newWebMux serves the JSON API, the websocket stream and static files
// from staticDir.
func newWebMux(cache *recordCache, staticDir string, logger golog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/output", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := cache.Latest()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rec); err != nil {
			logger.Warnw("web: json encode error", "error", err)
		}
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		streamRecords(w, r, cache, logger)
	})

	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

func streamRecords(w http.ResponseWriter, r *http.Request, cache *recordCache, logger golog.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnw("web: websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	updates, release := cache.Subscribe()
	defer release()

	// the read side only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if rec, ok := cache.Latest(); ok {
		if err := conn.WriteJSON(rec); err != nil {
			return
		}
	}
	for {
		select {
		case <-closed:
			return
		case rec := <-updates:
			if err := conn.WriteJSON(rec); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debugw("web: websocket write error", "error", err)
				}
				return
			}
		}
	}
}

// RunWeb serves the latest record published by the producer.
func RunWeb(ctx context.Context, cfg *config.Config, logger golog.Logger) error {
	cache := newRecordCache()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribe(client, cfg.TopicOutput, recordHandler(logger, cache.Update), logger); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           newWebMux(cache, "web", logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return serveUntilDone(ctx, srv, logger)
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down.
func serveUntilDone(ctx context.Context, srv *http.Server, logger golog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("web server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	return nil
}
