package http_controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/horockey/akv"
	"github.com/horockey/akv/internal/controller/http_controller/dto"
	"github.com/horockey/go-toolbox/http_helpers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type flusher interface {
	Flush(ctx context.Context) error
}

const publicRoutePrefix = "public:"

type HttpController struct {
	serv    *http.Server
	router  *mux.Router
	apiKey  string
	kv      akv.KV
	logger  zerolog.Logger
	metrics *metrics
}

// New serves kv over http.
// Empty apiKey disables auth.
func New(
	addr string,
	apiKey string,
	kv akv.KV,
	logger zerolog.Logger,
) *HttpController {
	ctrl := HttpController{
		serv: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: time.Second * 5, //nolint: mnd
		},
		apiKey:  apiKey,
		kv:      kv,
		logger:  logger,
		metrics: newMetrics(),
	}

	router := mux.NewRouter().SkipClean(true).UseEncodedPath()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = http_helpers.RespondWithErr(w, http.StatusNotFound, fmt.Errorf("unknown route: %s %s", req.Method, req.URL.Path))
	})

	router.HandleFunc("/kv/{key:.+}", ctrl.getKVKeyHandler).Methods(http.MethodGet)
	router.HandleFunc("/kv/{key:.+}", ctrl.putKVKeyHandler).Methods(http.MethodPut)
	router.HandleFunc("/kv/{key:.+}", ctrl.deleteKVKeyHandler).Methods(http.MethodDelete)
	router.HandleFunc("/kv", ctrl.getKVHandler).Methods(http.MethodGet)
	router.HandleFunc("/kv", ctrl.postKVHandler).Methods(http.MethodPost)
	router.HandleFunc("/kv", ctrl.deleteKVHandler).Methods(http.MethodDelete)
	router.HandleFunc("/keys", ctrl.getKeysHandler).Methods(http.MethodGet)
	router.HandleFunc("/flush", ctrl.postFlushHandler).Methods(http.MethodPost)
	router.Use(ctrl.metrics.mw, ctrl.authMW)

	ctrl.router = router
	ctrl.serv.Handler = router

	return &ctrl
}

// Mount serves h at path without auth. Must be called before Start.
func (ctrl *HttpController) Mount(path string, h http.Handler) {
	ctrl.router.Handle(path, h).Name(publicRoutePrefix + path)
}

func (ctrl *HttpController) Metrics() []prometheus.Collector {
	return ctrl.metrics.list()
}

// Handler is the router served by Start.
func (ctrl *HttpController) Handler() http.Handler {
	return ctrl.serv.Handler
}

func (ctrl *HttpController) Start(ctx context.Context) (resErr error) {
	var wg sync.WaitGroup
	defer wg.Wait()

	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctrl.logger.Info().Str("addr", ctrl.serv.Addr).Msg("http controller started")

	select {
	case <-ctx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
			resErr = errors.Join(resErr, fmt.Errorf("running context: %w", ctx.Err()))
		}

		sdCtx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint: mnd
		defer cancel()

		if err := ctrl.serv.Shutdown(sdCtx); err != nil {
			resErr = errors.Join(resErr, fmt.Errorf("shutting down server: %w", err))
		}
		return resErr

	case err := <-errCh:
		return fmt.Errorf("running server: %w", err)
	}
}

func (ctrl *HttpController) authMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if route := mux.CurrentRoute(req); route != nil && strings.HasPrefix(route.GetName(), publicRoutePrefix) {
			next.ServeHTTP(w, req)
			return
		}

		if ctrl.apiKey != "" && req.Header.Get("X-Api-Key") != ctrl.apiKey {
			_ = http_helpers.RespondWithErr(w, http.StatusForbidden, errors.New("invalid api key"))
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (ctrl *HttpController) pathKey(w http.ResponseWriter, req *http.Request) (string, bool) {
	key, err := url.PathUnescape(mux.Vars(req)["key"])
	if err != nil {
		err = fmt.Errorf("unescaping key: %w", err)
		ctrl.logger.Error().Err(err).Send()
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, err)
		return "", false
	}
	return key, true
}

func (ctrl *HttpController) getKVKeyHandler(w http.ResponseWriter, req *http.Request) {
	key, ok := ctrl.pathKey(w, req)
	if !ok {
		return
	}

	val, found := ctrl.kv.Get(key)
	if !found {
		_ = http_helpers.RespondWithErr(w, http.StatusNotFound, fmt.Errorf("key not found: %s", key))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(val); err != nil {
		ctrl.logger.
			Error().
			Err(fmt.Errorf("writing value: %w", err)).
			Send()
	}
}

func (ctrl *HttpController) putKVKeyHandler(w http.ResponseWriter, req *http.Request) {
	key, ok := ctrl.pathKey(w, req)
	if !ok {
		return
	}

	val, err := io.ReadAll(req.Body)
	if err != nil {
		ctrl.logger.
			Error().
			Err(fmt.Errorf("reading body: %w", err)).
			Send()
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, nil)
		return
	}

	ctrl.metrics.valueBytesInCnt.Add(float64(len(val)))
	ctrl.kv.Set(key, val)

	_ = http_helpers.RespondOK(w, nil)
}

func (ctrl *HttpController) deleteKVKeyHandler(w http.ResponseWriter, req *http.Request) {
	key, ok := ctrl.pathKey(w, req)
	if !ok {
		return
	}

	ctrl.kv.Delete(key)

	_ = http_helpers.RespondOK(w, nil)
}

func (ctrl *HttpController) getKVHandler(w http.ResponseWriter, req *http.Request) {
	data := ctrl.kv.GetWithPrefix(req.URL.Query().Get("prefix"))

	kvs := dto.NewKVs(data)
	slices.SortFunc(kvs, func(a, b dto.KV) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		default:
			return 0
		}
	})

	_ = http_helpers.RespondOK(w, kvs)
}

func (ctrl *HttpController) postKVHandler(w http.ResponseWriter, req *http.Request) {
	kvs := []dto.KV{}
	if err := json.NewDecoder(req.Body).Decode(&kvs); err != nil {
		err = fmt.Errorf("decoding body dto: %w", err)
		ctrl.logger.Error().Err(err).Send()
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, err)
		return
	}

	data, err := dto.KVsToMap(kvs)
	if err != nil {
		err = fmt.Errorf("converting dto to model: %w", err)
		ctrl.logger.Error().Err(err).Send()
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, err)
		return
	}

	for _, v := range data {
		ctrl.metrics.valueBytesInCnt.Add(float64(len(v)))
	}
	ctrl.kv.SetMany(data)

	_ = http_helpers.RespondOK(w, nil)
}

func (ctrl *HttpController) deleteKVHandler(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	if !query.Has("prefix") {
		err := errors.New("missing prefix, pass empty one to delete everything")
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, err)
		return
	}

	ctrl.kv.DeleteWithPrefix(query.Get("prefix"))

	_ = http_helpers.RespondOK(w, nil)
}

func (ctrl *HttpController) getKeysHandler(w http.ResponseWriter, req *http.Request) {
	keys := ctrl.kv.ScanKeys(akv.PrefixFilter(req.URL.Query().Get("prefix")))
	slices.Sort(keys)

	_ = http_helpers.RespondOK(w, dto.Keys{Keys: keys})
}

func (ctrl *HttpController) postFlushHandler(w http.ResponseWriter, req *http.Request) {
	fl, ok := ctrl.kv.(flusher)
	if !ok {
		_ = http_helpers.RespondWithErr(w, http.StatusNotImplemented, errors.New("store has no durable backend"))
		return
	}

	if err := fl.Flush(req.Context()); err != nil {
		ctrl.logger.
			Error().
			Err(fmt.Errorf("flushing store: %w", err)).
			Send()
		_ = http_helpers.RespondWithErr(w, http.StatusInternalServerError, err)
		return
	}

	_ = http_helpers.RespondOK(w, nil)
}
