package main

import (
	"encoding/json"
	"fmt"

	"github.com/nachos-go/kernel/internal/frame"
	"github.com/nachos-go/kernel/internal/transport"
)

type allocateRequest struct {
	PID int `json:"pid"`
	Count int `json:"count"`
}

type allocateResponse struct {
	Frames []int `json:"frames"`
}

func allocateHandler(alloc *frame.Allocator) transport.HandlerFunc {
	return func(env *transport.Envelope) (interface{}, error) {
		var req allocateRequest
		if err := decodeBody(env.Body, &req); err != nil {
			return nil, err
		}
		frames, err := alloc.Allocate(req.PID, req.Count)
		if err != nil {
			return nil, err
		}
		return allocateResponse{Frames: frames}, nil
	}
}

type freeRequest struct {
	PID int `json:"pid"`
	PPN int `json:"ppn"`
}

func freeHandler(alloc *frame.Allocator) transport.HandlerFunc {
	return func(env *transport.Envelope) (interface{}, error) {
		var req freeRequest
		if err := decodeBody(env.Body, &req); err != nil {
			return nil, err
		}
		alloc.Free(req.PID, req.PPN)
		return map[string]bool{"ok": true}, nil
	}
}

// decodeBody re-marshals the envelope's already-decoded interface{} body
// and unmarshals it into dst, since transport.Server's JSON decode of
// Envelope leaves Body as map[string]interface{} rather than the concrete request type.
func decodeBody(body interface{}, dst interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: re-marshal envelope body: %w", err)
	}
	return json.Unmarshal(raw, dst)
}
