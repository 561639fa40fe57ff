package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel log.Level
	}{
		{name: "success", status: http.StatusCreated, wantLevel: log.InfoLevel},
		{name: "client error", status: http.StatusNotFound, wantLevel: log.InfoLevel},
		{name: "server error", status: http.StatusServiceUnavailable, wantLevel: log.WarnLevel},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			r := mux.NewRouter()
			r.Use(Logging(log.NewEntry(logger)))
			r.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(testCase.status)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/ping?x=1", nil))

			assert.Equal(t, testCase.status, w.Code)
			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, testCase.wantLevel, entry.Level)
			assert.Equal(t, testCase.status, entry.Data["status"])
			assert.Equal(t, "/ping?x=1", entry.Data["url"])
		})
	}
}
