package env

import (
	"fmt"

	zap "go.uber.org/zap"
)

func MakeLogger(level string) (*zap.Logger, error) {
	atomicLevel := zap.NewAtomicLevel()
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("Invalid log level %q: %w", level, err)
	}

	logConfig := zap.NewProductionConfig()
	logConfig.Level = atomicLevel
	logConfig.Encoding = "json"

	return logConfig.Build()
}
