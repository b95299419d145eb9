package scanner

import (
	"context"
	"fmt"

	"github.com/buemura/surface/pkg/types"
)

// SafeRun executes a probe and converts a panic into an error so one broken
// probe cannot take down the scan.
func SafeRun(ctx context.Context, p Probe, target types.Target, progress ProgressFunc) (findings []types.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("probe %s panicked: %v", p.Name(), r)
		}
	}()

	findings, err = p.Run(ctx, target, progress)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", p.Name(), err)
	}
	for i := range findings {
		if findings[i].Probe == "" {
			findings[i].Probe = p.Name()
		}
	}
	return findings, nil
}
