package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/adxl345_driver/internal/config"
)

// poseStore keeps the latest pose of every device seen on the pose topics.
type poseStore struct {
	mu    sync.RWMutex
	poses map[string]PoseMessage
}

func newPoseStore() *poseStore {
	return &poseStore{poses: make(map[string]PoseMessage)}
}

func (s *poseStore) set(p PoseMessage) {
	s.mu.Lock()
	s.poses[p.Device] = p
	s.mu.Unlock()
}

// handleOrientation serves every pose on /api/orientation and one device's
// pose on /api/orientation/<device>.
func (s *poseStore) handleOrientation(w http.ResponseWriter, r *http.Request) {
	device := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/orientation"), "/")

	s.mu.RLock()
	defer s.mu.RUnlock()

	var v interface{}
	if device == "" {
		all := make([]PoseMessage, 0, len(s.poses))
		for _, p := range s.poses {
			all = append(all, p)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Device < all[j].Device })
		v = all
	} else {
		p, ok := s.poses[device]
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		v = p
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// RunWeb serves the latest poses published by the driver, plus static files
// from WEB_ROOT, until ctx ends.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	store := newPoseStore()
	if err := subscribeJSON(client, cfg.TopicPose+"/+", "web", store.set); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/orientation", store.handleOrientation)
	mux.HandleFunc("/api/orientation/", store.handleOrientation)
	mux.Handle("/", http.FileServer(http.Dir(cfg.WebRoot)))

	srv := &http.Server{Addr: cfg.WebAddr, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		log.Printf("web: listening on %s", cfg.WebAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
