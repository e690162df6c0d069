package file_durable_kv_pairs

import (
	"fmt"
	"os"

	"github.com/horockey/go-toolbox/options"
)

type params struct {
	sync         bool
	fileMode     os.FileMode
	writeWorkers int
}

func defaultParams() params {
	return params{
		fileMode:     0o644, //nolint: mnd
		writeWorkers: 8,     //nolint: mnd
	}
}

type Option = options.Option[params]

// Enables fsync of every written file before it is renamed in place.
// Default is false.
func WithSync(sync bool) Option {
	return func(target *params) error {
		target.sync = sync
		return nil
	}
}

// Sets permissions of created files.
// Default is 0644.
func WithFileMode(mode os.FileMode) Option {
	return func(target *params) error {
		if mode&0o600 != 0o600 { //nolint: mnd
			return fmt.Errorf("file mode must allow owner read and write, got: %s", mode.String())
		}
		target.fileMode = mode
		return nil
	}
}

// Sets count of files written in parallel during a flush.
// Default is 8.
func WithWriteWorkers(n int) Option {
	return func(target *params) error {
		if n <= 0 {
			return fmt.Errorf("write workers count must be positive, got: %d", n)
		}
		target.writeWorkers = n
		return nil
	}
}
