package badger_durable_kv_pairs

import (
	"strings"

	"github.com/dgraph-io/badger"
	"github.com/rs/zerolog"
)

var _ badger.Logger = badgerLogger{}

// badgerLogger routes badger internals to zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (bl badgerLogger) Errorf(f string, v ...any) {
	bl.l.Error().Msgf(strings.TrimSpace(f), v...)
}

func (bl badgerLogger) Warningf(f string, v ...any) {
	bl.l.Warn().Msgf(strings.TrimSpace(f), v...)
}

func (bl badgerLogger) Infof(f string, v ...any) {
	bl.l.Debug().Msgf(strings.TrimSpace(f), v...)
}

func (bl badgerLogger) Debugf(f string, v ...any) {
	bl.l.Trace().Msgf(strings.TrimSpace(f), v...)
}
