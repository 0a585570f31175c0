package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Alexander-D-Karpov/blockfs/internal/fs"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type CheckResponse struct {
	Deep     bool         `json:"deep"`
	Clean    bool         `json:"clean"`
	Problems []fs.Problem `json:"problems"`
}

func (s *Inspector) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Inspector) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.fs.Stats())
}

// Check runs a consistency pass. ?deep=1 also reads every file back and
// verifies its checksum.
func (s *Inspector) Check(w http.ResponseWriter, r *http.Request) {
	deep := false
	if v := r.URL.Query().Get("deep"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "EINVAL", "deep must be a boolean")
			return
		}
		deep = b
	}

	problems := s.fs.Check(deep)
	if problems == nil {
		problems = []fs.Problem{}
	}
	for _, p := range problems {
		logger.Warn("Check: %s", p)
	}
	writeJSON(w, http.StatusOK, CheckResponse{Deep: deep, Clean: len(problems) == 0, Problems: problems})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
