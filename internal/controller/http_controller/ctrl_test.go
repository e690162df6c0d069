package http_controller_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/horockey/akv"
	"github.com/horockey/akv/internal/controller/http_controller"
	"github.com/horockey/akv/internal/controller/http_controller/dto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "secret"

func newServer(t *testing.T, kv akv.KV) *httptest.Server {
	t.Helper()

	ctrl := http_controller.New("", apiKey, kv, zerolog.Nop())
	srv := httptest.NewServer(ctrl.Handler())
	t.Cleanup(srv.Close)

	return srv
}

func do(t *testing.T, method, url string, body []byte) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func Test_Auth(t *testing.T) {
	srv := newServer(t, akv.NewMemoryStore(nil))

	resp, err := http.Get(srv.URL + "/keys")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	code, _ := do(t, http.MethodGet, srv.URL+"/keys", nil)
	assert.Equal(t, http.StatusOK, code)
}

func Test_Auth_Disabled(t *testing.T) {
	ctrl := http_controller.New("", "", akv.NewMemoryStore(nil), zerolog.Nop())
	srv := httptest.NewServer(ctrl.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/keys")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func Test_KeyRoundTrip(t *testing.T) {
	kv := akv.NewMemoryStore(nil)
	srv := newServer(t, kv)

	code, _ := do(t, http.MethodGet, srv.URL+"/kv/a/b", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, http.MethodPut, srv.URL+"/kv/a/b", []byte("value"))
	require.Equal(t, http.StatusOK, code)

	val, found := kv.Get("a/b")
	require.True(t, found)
	assert.Equal(t, []byte("value"), val)

	code, body := do(t, http.MethodGet, srv.URL+"/kv/a/b", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []byte("value"), body)

	code, _ = do(t, http.MethodPut, srv.URL+"/kv/with%20space", []byte("x"))
	require.Equal(t, http.StatusOK, code)
	_, found = kv.Get("with space")
	assert.True(t, found)

	code, _ = do(t, http.MethodDelete, srv.URL+"/kv/a/b", nil)
	require.Equal(t, http.StatusOK, code)
	_, found = kv.Get("a/b")
	assert.False(t, found)
}

func Test_Batch(t *testing.T) {
	kv := akv.NewMemoryStore(nil)
	srv := newServer(t, kv)

	body, err := json.Marshal([]dto.KV{
		dto.NewKV("p/2", []byte("2")),
		dto.NewKV("p/1", []byte("1")),
		dto.NewKV("q/1", []byte("3")),
	})
	require.NoError(t, err)

	code, _ := do(t, http.MethodPost, srv.URL+"/kv", body)
	require.Equal(t, http.StatusOK, code)

	code, resp := do(t, http.MethodGet, srv.URL+"/kv?prefix=p/", nil)
	require.Equal(t, http.StatusOK, code)

	kvs := []dto.KV{}
	require.NoError(t, json.Unmarshal(resp, &kvs))
	assert.Equal(t, []dto.KV{
		dto.NewKV("p/1", []byte("1")),
		dto.NewKV("p/2", []byte("2")),
	}, kvs)

	code, resp = do(t, http.MethodGet, srv.URL+"/keys", nil)
	require.Equal(t, http.StatusOK, code)

	keys := dto.Keys{}
	require.NoError(t, json.Unmarshal(resp, &keys))
	assert.Equal(t, []string{"p/1", "p/2", "q/1"}, keys.Keys)

	code, _ = do(t, http.MethodDelete, srv.URL+"/kv", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodDelete, srv.URL+"/kv?prefix=p/", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"q/1"}, kv.ScanKeys(akv.PrefixFilter("")))

	code, _ = do(t, http.MethodDelete, srv.URL+"/kv?prefix=", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, kv.GetAll())
}

func Test_Batch_InvalidBody(t *testing.T) {
	srv := newServer(t, akv.NewMemoryStore(nil))

	code, _ := do(t, http.MethodPost, srv.URL+"/kv", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodPost, srv.URL+"/kv", []byte(`[{"key":"k","value":"!!"}]`))
	assert.Equal(t, http.StatusBadRequest, code)
}

func Test_Flush(t *testing.T) {
	srv := newServer(t, akv.NewMemoryStore(nil))
	code, _ := do(t, http.MethodPost, srv.URL+"/flush", nil)
	assert.Equal(t, http.StatusNotImplemented, code)

	st, err := akv.Open(t.TempDir(), akv.WithLogger(zerolog.Nop()), akv.WithFlushInterval(time.Hour))
	require.NoError(t, err)
	defer st.Close()

	srv = newServer(t, st)
	code, _ = do(t, http.MethodPut, srv.URL+"/kv/k", []byte("v"))
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, http.MethodPost, srv.URL+"/flush", nil)
	assert.Equal(t, http.StatusOK, code)
}

func Test_Metrics(t *testing.T) {
	ctrl := http_controller.New("", apiKey, akv.NewMemoryStore(nil), zerolog.Nop())
	assert.Len(t, ctrl.Metrics(), 3)
}

func Test_Mount_SkipsAuth(t *testing.T) {
	ctrl := http_controller.New("", apiKey, akv.NewMemoryStore(nil), zerolog.Nop())
	ctrl.Mount("/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv := httptest.NewServer(ctrl.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func Test_UnknownRoute(t *testing.T) {
	srv := newServer(t, akv.NewMemoryStore(nil))

	code, _ := do(t, http.MethodGet, srv.URL+"/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, http.MethodGet, srv.URL+"/kv/", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
