package app

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
	"github.com/relabs-tech/adxl345_driver/internal/metrics"
)

// Server is the HTTP surface of the driver daemon.
type Server struct {
	devices deviceDirectory
	hub     *Hub
	rangeG  int
	started time.Time

	calMu sync.Mutex
	cals  map[string]*calibration
}

// NewServer returns a server over devices that streams through hub. rangeG
// is the configured measurement range, used by calibration.
func NewServer(devices deviceDirectory, hub *Hub, rangeG int) *Server {
	return &Server{
		devices: devices,
		hub:     hub,
		rangeG:  rangeG,
		started: time.Now(),
		cals:    make(map[string]*calibration),
	}
}

// DeviceStatus is one device in the status response.
type DeviceStatus struct {
	adxl345.Stats
	Summary string `json:"summary"`
}

// StatusResponse is served on /api/status.
type StatusResponse struct {
	Started   time.Time      `json:"started"`
	Uptime    string         `json:"uptime"`
	WSClients int            `json:"ws_clients"`
	WSDropped uint64         `json:"ws_dropped"`
	Devices   []DeviceStatus `json:"devices"`
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.HandleWS)
	return mux
}

// Status collects the status of every attached device.
func (s *Server) Status() StatusResponse {
	resp := StatusResponse{
		Started:   s.started,
		Uptime:    strings.TrimSpace(humanize.RelTime(s.started, time.Now(), "", "")),
		WSClients: s.hub.Len(),
		WSDropped: s.hub.Dropped(),
		Devices:   []DeviceStatus{},
	}
	for _, name := range s.devices.Names() {
		dev, err := s.devices.Device(name)
		if err != nil {
			continue // detached meanwhile
		}
		st := dev.Stats()
		resp.Devices = append(resp.Devices, DeviceStatus{Stats: st, Summary: summarize(st)})
	}
	return resp
}

func summarize(st adxl345.Stats) string {
	return humanize.Comma(int64(st.Pushed)) + " samples, " +
		humanize.Comma(int64(st.Dropped)) + " dropped, " +
		humanize.Comma(int64(st.Interrupts)) + " interrupts, " +
		humanize.Comma(int64(st.BusErrors)) + " bus errors"
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		log.Printf("http: status encode error: %v", err)
	}
}
