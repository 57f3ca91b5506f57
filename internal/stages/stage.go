// Package stages defines the transform stage of every asset category.
package stages

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/assets"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// Scope decides what a watch-triggered run reads.
type Scope int

const (
	// Aggregate stages always reload their full source set: partials, includes,
	// imports and sprite sheets make outputs depend on more than one file.
	Aggregate Scope = iota
	// PerFile stages narrow a watch-triggered run to the changed files.
	PerFile
)

// Stage reads the files of one category, runs them through a fixed chain and
// writes the results beneath the category's destination.
type Stage struct {
	Name     string
	Category assets.Category
	Chain    pipeline.Chain
	Scope    Scope

	table    *assets.Table
	recorder metrics.Recorder
}

// Result summarizes one stage run.
type Result struct {
	Stage    string
	Inputs   int
	Written  []string
	Duration time.Duration
}

// Run executes the stage. Without changed paths it reads every file matching the
// category glob. With changed paths (project-relative) a PerFile stage reads only
// those that still exist and belong to its category.
func (s *Stage) Run(ctx context.Context, changed ...string) (*Result, error) {
	log := logfields.Logger(ctx).With(logfields.Stage(s.Name))
	start := time.Now()
	res := &Result{Stage: s.Name}

	in, err := s.load(changed)
	if err != nil {
		s.finish(log, res, start, err)
		return res, err
	}
	res.Inputs = len(in)
	if len(in) == 0 {
		log.Debug("No matching source files", logfields.Category(string(s.Category)))
		res.Duration = time.Since(start)
		return res, nil
	}

	out, err := s.Chain.Run(ctx, s.Name, in)
	if out != nil {
		res.Written = out.Written
	}
	s.finish(log, res, start, err)
	return res, err
}

func (s *Stage) finish(log *slog.Logger, res *Result, start time.Time, err error) {
	res.Duration = time.Since(start)
	s.recorder.ObserveStageDuration(s.Name, res.Duration)
	switch {
	case err == nil:
		s.recorder.IncStageResult(s.Name, metrics.ResultSuccess)
		log.Info("Stage finished", logfields.Files(len(res.Written)), logfields.Duration(res.Duration))
	case errors.Is(err, context.Canceled):
		s.recorder.IncStageResult(s.Name, metrics.ResultCanceled)
		log.Warn("Stage canceled", logfields.Duration(res.Duration))
	default:
		s.recorder.IncStageResult(s.Name, metrics.ResultFailed)
		log.Error("Stage failed", logfields.Error(err), logfields.Duration(res.Duration))
	}
}

func (s *Stage) load(changed []string) ([]*pipeline.Asset, error) {
	var files []string
	if len(changed) > 0 && s.Scope == PerFile {
		for _, rel := range changed {
			if s.owns(rel) {
				files = append(files, rel)
			}
		}
	} else {
		var err error
		if files, err = s.table.Files(s.Category); err != nil {
			return nil, err
		}
	}

	out := make([]*pipeline.Asset, 0, len(files))
	for _, rel := range files {
		data, info, err := s.table.ReadFile(rel)
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed between listing and reading
			}
			return nil, ferrors.FileSystemError("failed to read source file").WithCause(err).WithPath(rel).Build()
		}
		out = append(out, &pipeline.Asset{
			Source:   rel,
			Path:     s.table.OutputPath(s.Category, rel),
			Contents: data,
			ModTime:  info.ModTime(),
		})
	}
	return out, nil
}

func (s *Stage) owns(rel string) bool {
	for _, c := range s.table.Match(rel) {
		if c == s.Category {
			return true
		}
	}
	return false
}
