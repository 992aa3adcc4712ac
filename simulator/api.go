package simulator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ecoheat/utils"

	"github.com/gorilla/mux"
)

// NewRouter exposes the simulated devices over HTTP so a room can be pushed
// across a heating threshold by hand.
func NewRouter(sim *Simulator, logger *utils.Logger) *mux.Router {
	h := &apiHandler{sim: sim}
	router := mux.NewRouter()

	router.HandleFunc("/rooms", h.listRooms).Methods(http.MethodGet)
	router.HandleFunc("/rooms/{id}", h.getRoom).Methods(http.MethodGet)
	router.HandleFunc("/rooms/{id}/temperature", h.pinTemperature).Methods(http.MethodPut)
	router.HandleFunc("/rooms/{id}/temperature", h.releaseTemperature).Methods(http.MethodDelete)
	router.HandleFunc("/rooms/{id}/status", h.sendStatus).Methods(http.MethodPost)

	router.Use(loggingMiddleware(logger))
	return router
}

type apiHandler struct {
	sim *Simulator
}

func (h *apiHandler) listRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Simulated rooms", h.sim.Snapshots()))
}

func (h *apiHandler) getRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := roomParam(w, r)
	if !ok {
		return
	}
	snap, err := h.sim.Snapshot(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Simulated room", snap))
}

func (h *apiHandler) pinTemperature(w http.ResponseWriter, r *http.Request) {
	id, ok := roomParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Temperature *float64 `json:"temperature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Temperature == nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("temperature is required"))
		return
	}
	if err := h.sim.PinTemperature(id, body.Temperature); err != nil {
		writeError(w, err)
		return
	}
	snap, _ := h.sim.Snapshot(id)
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Temperature pinned", snap))
}

func (h *apiHandler) releaseTemperature(w http.ResponseWriter, r *http.Request) {
	id, ok := roomParam(w, r)
	if !ok {
		return
	}
	if err := h.sim.PinTemperature(id, nil); err != nil {
		writeError(w, err)
		return
	}
	snap, _ := h.sim.Snapshot(id)
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Temperature released", snap))
}

func (h *apiHandler) sendStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := roomParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("message is required"))
		return
	}
	if err := h.sim.SendStatus(id, body.Message); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Status sent", nil))
}

func roomParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid id parameter: must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnknownRoom) {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusBadGateway, utils.ErrorResponse(err.Error()))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func loggingMiddleware(logger *utils.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debugf("%s %s %s %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
		})
	}
}
