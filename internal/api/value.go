package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// @Title: Get Stored Value
// @Route: GET /value
// @Description: Read the current value from the storage contract
// @Response: {"value": <number>}
func (s *Service) HandleGetValue(w http.ResponseWriter, r *http.Request) {
	value, err := s.storage.Value(r.Context())
	if err != nil {
		s.logger.Failure("read stored value", err)
		s.writeError(w, http.StatusBadGateway, "Failed to read value")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"value": value})
}

// @Title: Set Stored Value
// @Route: POST /value
// @Description: Write a new value to the storage contract and wait for it to land
// @Response: {"message": "Value updated!"}
func (s *Service) HandleSetValue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *uint64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.storage.SetValue(r.Context(), *req.Value); err != nil {
		s.logger.Failure("write stored value", err)
		s.writeError(w, http.StatusBadGateway, "Failed to update value")
		return
	}

	s.logger.Info(fmt.Sprintf("Stored value set to %d", *req.Value))
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Value updated!"})
}
