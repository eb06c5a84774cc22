package logger

import (
	"time"

	"go.uber.org/zap"
)

func String(key, val string) Field {
	return zap.String(key, val)
}

func Strings(key string, val []string) Field {
	return zap.Strings(key, val)
}

func Int(key string, val int) Field {
	return zap.Int(key, val)
}

func Int64(key string, val int64) Field {
	return zap.Int64(key, val)
}

func Bool(key string, val bool) Field {
	return zap.Bool(key, val)
}

func Duration(key string, val time.Duration) Field {
	return zap.Duration(key, val)
}

func Time(key string, val time.Time) Field {
	return zap.Time(key, val)
}

func Any(key string, val any) Field {
	return zap.Any(key, val)
}

// Error adds err under the "error" key.
func Error(err error) Field {
	return zap.Error(err)
}

// Component tags lines with the emitting pipeline component.
func Component(name string) Field {
	return zap.String("component", name)
}

// EntityID tags lines with the source-system identifier of an entity.
func EntityID(id string) Field {
	return zap.String("entity_id", id)
}

// RunID correlates all lines of one pipeline pass.
func RunID(id string) Field {
	return zap.String("run_id", id)
}
