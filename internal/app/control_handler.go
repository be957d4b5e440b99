// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
	"github.com/relabs-tech/adxl345_driver/internal/chardev"
)

// deviceDirectory is the view of the lifecycle manager the HTTP surface needs.
type deviceDirectory interface {
	Names() []string
	Device(name string) (*adxl345.Device, error)
	Open(name string) (*chardev.File, error)
}

// ControlCmd is a websocket request.
type ControlCmd struct {
	Action  string `json:"action"` // get_map, list, read_register, read_all, set_axis, set_mode, stats, calibrate
	Device  string `json:"device,omitempty"`
	Address string `json:"addr,omitempty"`
	Axis    *int   `json:"axis,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Samples int    `json:"samples,omitempty"` // calibrate only
}

// ControlResponse is the reply to a ControlCmd.
type ControlResponse struct {
	Type        string            `json:"type"` // "register_data", "register_map", "devices", "status", "stats", "error"
	Device      string            `json:"device,omitempty"`
	Address     string            `json:"addr,omitempty"`
	Name        string            `json:"name,omitempty"`
	Value       string            `json:"value,omitempty"`
	Registers   map[string]string `json:"registers,omitempty"` // for bulk read
	RegisterMap []RegisterInfo    `json:"register_map,omitempty"`
	Devices     []string          `json:"devices,omitempty"`
	Stats       *adxl345.Stats    `json:"stats,omitempty"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// RegisterInfo is adxl345.RegisterInfo with a printable address.
type RegisterInfo struct {
	Address string `json:"address"`
	adxl345.RegisterInfo
}

// HandleWS streams sample batches and poses to the client and serves
// register and control commands on the same connection.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: websocket upgrade error: %v", err)
		return
	}
	c := s.hub.add(conn)
	defer s.hub.remove(c)

	s.hub.reply(c, registerMapResponse())

	for {
		var cmd ControlCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error: %v", err)
			}
			return
		}
		s.hub.reply(c, s.handleCommand(c, cmd))
	}
}

// handleCommand serves cmd for client c, which receives any later
// asynchronous result.
func (s *Server) handleCommand(c *wsClient, cmd ControlCmd) ControlResponse {
	switch cmd.Action {
	case "get_map":
		return registerMapResponse()
	case "list":
		return ControlResponse{Type: "devices", Devices: s.devices.Names()}
	case "read_register":
		return s.handleReadRegister(cmd)
	case "read_all":
		return s.handleReadAll(cmd)
	case "set_axis":
		return s.handleSetAxis(cmd)
	case "set_mode":
		return s.handleSetMode(cmd)
	case "stats":
		dev, err := s.devices.Device(cmd.Device)
		if err != nil {
			return errorResponse(err.Error())
		}
		st := dev.Stats()
		return ControlResponse{Type: "stats", Device: cmd.Device, Stats: &st}
	case "calibrate":
		return s.handleCalibrate(c, cmd)
	case "":
		return errorResponse("missing or invalid action field")
	}
	return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
}

func (s *Server) handleReadRegister(cmd ControlCmd) ControlResponse {
	if cmd.Device == "" || cmd.Address == "" {
		return errorResponse("missing device or addr field")
	}
	reg, err := parseRegister(cmd.Address)
	if err != nil {
		return errorResponse(err.Error())
	}
	if adxl345.PopsFIFO(reg) {
		return errorResponse(fmt.Sprintf("register 0x%02X is read by the interrupt handler only", reg))
	}
	dev, err := s.devices.Device(cmd.Device)
	if err != nil {
		return errorResponse(err.Error())
	}
	value, err := dev.ReadRegister(reg)
	if err != nil {
		return errorResponse(fmt.Sprintf("read error: %v", err))
	}
	return ControlResponse{
		Type:      "register_data",
		Device:    cmd.Device,
		Address:   fmt.Sprintf("0x%02X", reg),
		Name:      adxl345.RegisterName(reg),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (s *Server) handleReadAll(cmd ControlCmd) ControlResponse {
	if cmd.Device == "" {
		return errorResponse("missing device field")
	}
	dev, err := s.devices.Device(cmd.Device)
	if err != nil {
		return errorResponse(err.Error())
	}
	regs := make(map[string]string)
	for _, info := range adxl345.RegisterMap() {
		if adxl345.PopsFIFO(info.Address) {
			continue
		}
		value, err := dev.ReadRegister(info.Address)
		if err != nil {
			return errorResponse(fmt.Sprintf("read all error at 0x%02X: %v", info.Address, err))
		}
		regs[fmt.Sprintf("0x%02X", info.Address)] = fmt.Sprintf("0x%02X", value)
	}
	return ControlResponse{
		Type:      "register_data",
		Device:    cmd.Device,
		Registers: regs,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// handleSetAxis goes through an open endpoint, like any other client would.
func (s *Server) handleSetAxis(cmd ControlCmd) ControlResponse {
	if cmd.Device == "" || cmd.Axis == nil {
		return errorResponse("missing device or axis field")
	}
	if err := s.control(cmd.Device, adxl345.CmdSetAxis, *cmd.Axis); err != nil {
		return errorResponse(fmt.Sprintf("set axis error: %v", err))
	}
	return ControlResponse{Type: "status", Device: cmd.Device, Message: fmt.Sprintf("axis set to %s", adxl345.Axis(*cmd.Axis))}
}

func (s *Server) handleSetMode(cmd ControlCmd) ControlResponse {
	if cmd.Device == "" {
		return errorResponse("missing device field")
	}
	mode, err := adxl345.ParseReadMode(cmd.Mode)
	if err != nil {
		return errorResponse(err.Error())
	}
	if err := s.control(cmd.Device, adxl345.CmdSetReadMode, int(mode)); err != nil {
		return errorResponse(fmt.Sprintf("set mode error: %v", err))
	}
	return ControlResponse{Type: "status", Device: cmd.Device, Message: fmt.Sprintf("read mode set to %s", mode)}
}

func (s *Server) control(device string, cmd chardev.Command, arg int) error {
	f, err := s.devices.Open(device)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Control(cmd, arg)
}

func registerMapResponse() ControlResponse {
	regs := adxl345.RegisterMap()
	mapped := make([]RegisterInfo, len(regs))
	for i, r := range regs {
		mapped[i] = RegisterInfo{Address: fmt.Sprintf("0x%02X", r.Address), RegisterInfo: r}
	}
	return ControlResponse{Type: "register_map", Device: "adxl345", RegisterMap: mapped}
}

func errorResponse(message string) ControlResponse {
	return ControlResponse{Type: "error", Message: message}
}

// parseRegister accepts "0x2C", "2C" or "44".
func parseRegister(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		v, err = strconv.ParseUint(s, 16, 8)
	}
	if err != nil || v > 0x3F {
		return 0, fmt.Errorf("invalid address format: %s", s)
	}
	return byte(v), nil
}
