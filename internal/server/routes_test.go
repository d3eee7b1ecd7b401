package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avilanova/metermux2mqtt/internal/measure"
	"github.com/avilanova/metermux2mqtt/internal/util"
	"github.com/avilanova/metermux2mqtt/pkg/meterbus"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testServer(t *testing.T) (*Server, *measure.Store, *meterbus.Poller) {
	cfg := util.LoadTestConfig()

	schema, err := meterbus.BuildSchema([]byte(cfg.Meter.RegisterMap), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	transport := meterbus.NewTestTransport()
	transport.SetValue(1, 0, 230.2, meterbus.TypeFloat32)
	transport.SetValue(1, 6, 4.5, meterbus.TypeFloat32)
	transport.SetValue(1, 342, 1234.5, meterbus.TypeFloat32)

	store := measure.NewStore(cfg.ResolutionConfig)
	poller, err := meterbus.NewPoller(schema, transport, store, store, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	s := &Server{
		port:   cfg.Port,
		schema: schema,
		poller: poller,
		store:  store,
	}
	return s, store, poller
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {

	assert := assert.New(t)

	s, _, _ := testServer(t)

	rec := doRequest(s, http.MethodGet, "/healthcheck")
	assert.Equal(http.StatusOK, rec.Code)

	var body map[string]any
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal("SDM120", body["meter"])
	assert.Equal(float64(1), body["phases"])
	assert.Equal(float64(0), body["dropped_users"])

	caps, ok := body["capabilities"].(map[string]any)
	if assert.True(ok) {
		assert.Equal(true, caps["voltage_available"])
		assert.Equal(true, caps["common_voltage"])
		assert.Equal(true, caps["total_authoritative"])
		assert.Equal(false, caps["common_frequency"])
	}
}

func TestMeasurementsAfterOneCycle(t *testing.T) {

	assert := assert.New(t)

	s, store, poller := testServer(t)

	// one prime tick plus one consume per active register
	for i := 0; i < 4; i++ {
		poller.Tick()
	}
	assert.Equal(uint64(1), store.Cycles())

	rec := doRequest(s, http.MethodGet, "/measurements")
	assert.Equal(http.StatusOK, rec.Code)

	var body struct {
		Cycles       uint64                `json:"cycles"`
		Measurements map[string][]*float64 `json:"measurements"`
	}
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(uint64(1), body.Cycles)

	voltage := body.Measurements["voltage"]
	if assert.Len(voltage, 1) && assert.NotNil(voltage[0]) {
		assert.InDelta(230.2, *voltage[0], 1e-3)
	}
	current := body.Measurements["current"]
	if assert.Len(current, 1) && assert.NotNil(current[0]) {
		assert.InDelta(4.5, *current[0], 1e-3)
	}
	_, hasPower := body.Measurements["power"]
	assert.False(hasPower)
}

func TestRegistersEmptyWithoutUserRegisters(t *testing.T) {

	assert := assert.New(t)

	s, _, _ := testServer(t)

	rec := doRequest(s, http.MethodGet, "/registers")
	assert.Equal(http.StatusOK, rec.Code)
	assert.JSONEq("[]", rec.Body.String())
}

func TestSuspendResume(t *testing.T) {

	assert := assert.New(t)

	s, store, poller := testServer(t)

	rec := doRequest(s, http.MethodPost, "/suspend")
	assert.Equal(http.StatusNoContent, rec.Code)

	for i := 0; i < 4; i++ {
		poller.Tick()
	}
	assert.Equal(uint64(0), store.Cycles())

	rec = doRequest(s, http.MethodPost, "/resume")
	assert.Equal(http.StatusNoContent, rec.Code)

	for i := 0; i < 4; i++ {
		poller.Tick()
	}
	assert.Equal(uint64(1), store.Cycles())
}
