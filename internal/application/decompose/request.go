package decompose

import (
	"github.com/turtacn/meshdecomp/internal/config"
	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/internal/infrastructure/meshio"
)

// RequestFromConfig builds a Request from cfg.  A dictionary path takes
// precedence over inline region entries.
func RequestFromConfig(cfg *config.Config) (*Request, error) {
	lin, err := decomposition.ParseLinearization(cfg.Decomposition.Linearization)
	if err != nil {
		return nil, err
	}
	pol, err := decomposition.ParseOutOfRangePolicy(cfg.Decomposition.OutOfRange)
	if err != nil {
		return nil, err
	}
	inFmt, err := meshio.ParseFormat(cfg.Input.Format)
	if err != nil {
		return nil, err
	}
	outFmt, err := meshio.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	req := &Request{
		DictPath:      cfg.Decomposition.Dict,
		Case:          cfg.Input.Case,
		Centers:       cfg.Input.Centers,
		CentersFormat: inFmt,
		Cells:         cfg.Input.Cells,
		Output:        cfg.Output.Path,
		OutputFormat:  outFmt,
		Linearization: lin,
		OutOfRange:    pol,
		Workers:       cfg.Worker.Concurrency,
		ChunkSize:     cfg.Worker.ChunkSize,
	}
	if req.DictPath == "" && cfg.Decomposition.HasInlineRegions() {
		st, err := cfg.Decomposition.Settings()
		if err != nil {
			return nil, err
		}
		req.Settings = &st
	}
	return req, nil
}
