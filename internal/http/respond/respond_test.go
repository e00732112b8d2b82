package respond

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/tokenauth/internal/envelope"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(envelope.CodeSuccess))
	assert.Equal(t, http.StatusNotFound, StatusFor(envelope.CodeNotFound))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(envelope.CodeInvalidCredentials))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(envelope.CodeTokenExpired))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(envelope.CodeInternal))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(envelope.Code(99)))
}

func TestError(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	rec := httptest.NewRecorder()
	Error(rec, logger, http.StatusBadRequest, "bad input")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"bad input"}`, rec.Body.String())
	assert.Empty(t, hook.AllEntries())
}

func TestEnvelope(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	rec := httptest.NewRecorder()
	Envelope(rec, logger, http.StatusConflict, envelope.New(envelope.CodeNotFound, nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"e":10}`, rec.Body.String())
}

func TestJSON_EncodeFailureUsesInjectedLogger(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	rec := httptest.NewRecorder()

	JSON(rec, logger, http.StatusOK, map[string]any{"ch": make(chan int)})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusOK, entry.Data["status"])
	assert.Error(t, entry.Data[logrus.ErrorKey].(error))
}
