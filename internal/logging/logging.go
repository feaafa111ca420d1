// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a production logger, or a human-readable development logger
// when environment is not "production".
func New(environment string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
