// Package logger builds the zap logger shared by all components.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a sugared logger. Verbose mode uses the human-readable
// development encoder and enables debug output.
func New(verbose bool) (*zap.SugaredLogger, error) {
	var l *zap.Logger
	var err error

	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return l.Sugar(), nil
}
