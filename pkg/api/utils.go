package api

import (
	"encoding/json"
	"net/http"

	"github.com/havocworlds/shuffle/go-offchain/pkg/log"
)

func GetService(r *http.Request) *Service {
	svc, ok := r.Context().Value(ServiceCtxKey).(*Service)
	if !ok {
		panic("GetService panic")
	}
	return svc
}

func JsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		ErrResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

type errorBody struct {
	Error string `json:"error"`
}

func ErrResponse(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		log.Errorw("Request failed", "error", err)
	}
	data, _ := json.Marshal(errorBody{Error: err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}
