package build

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetpipe/internal/assets"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/stages"
)

// TaskClean is the name of the destination-clearing task.
const TaskClean = "clean"

// Report describes one full build.
type Report struct {
	BuildID    string
	Mode       config.Mode
	StartedAt  time.Time
	CleanedAt  time.Time
	FinishedAt time.Time
	// Stages holds one result per stage run, in completion order.
	Stages []*stages.Result
	// Failed lists the names of stages whose run returned an error.
	Failed []string
}

// Duration is the wall time of the build.
func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Result returns the result of the named stage, or nil.
func (r *Report) Result(stage string) *stages.Result {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s
		}
	}
	return nil
}

// Orchestrator owns the destination tree and runs full builds.
type Orchestrator struct {
	table    *assets.Table
	set      *stages.Set
	mode     config.Mode
	recorder metrics.Recorder
	sm       stateMachine

	mu     sync.Mutex
	report *Report
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = metrics.OrNoop(r) }
}

// NewOrchestrator creates an idle orchestrator for the given stages.
func NewOrchestrator(table *assets.Table, set *stages.Set, mode config.Mode, opts ...Option) *Orchestrator {
	o := &Orchestrator{table: table, set: set, mode: mode, recorder: metrics.NoopRecorder{}}
	o.sm.state = StateIdle
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state. Safe for concurrent use.
func (o *Orchestrator) State() State { return o.sm.get() }

// Plan returns the task plan of a full build.
func (o *Orchestrator) Plan() Task {
	stage := func(name string) Task { return o.stageTask(name) }
	return Series("build",
		Func(TaskClean, o.clean),
		Parallel("assets",
			stage(stages.NameMarkup),
			stage(stages.NameStyles),
			stage(stages.NameScripts),
			Parallel("fonts",
				stage(stages.NameFontsWOFF),
				stage(stages.NameFontsWOFF2),
				stage(stages.NameFontsTTF),
			),
			Sequence("pictures",
				stage(stages.NameImages),
				stage(stages.NameSprites),
			),
		),
	)
}

// Build clears the destination tree and runs every stage. Stage failures do not
// stop unrelated stages; they are joined into the returned error. A failed
// clean aborts the build before any stage starts.
func (o *Orchestrator) Build(ctx context.Context) (*Report, error) {
	if err := o.sm.transition(StateCleaning); err != nil {
		return nil, ferrors.InternalError("build already in progress").WithCause(err).Build()
	}

	report := &Report{BuildID: uuid.NewString(), Mode: o.mode, StartedAt: time.Now()}
	o.mu.Lock()
	o.report = report
	o.mu.Unlock()

	log := logfields.Logger(ctx).With(logfields.BuildID(report.BuildID), logfields.Mode(o.mode.String()))
	ctx = logfields.WithLogger(ctx, log)
	log.Info("Build started")

	err := o.Plan().Run(ctx)
	report.FinishedAt = time.Now()
	o.recorder.ObserveBuildDuration(report.Duration())

	switch {
	case errors.Is(err, context.Canceled):
		_ = o.sm.transition(StateFailed)
		o.recorder.IncBuildOutcome(metrics.BuildCanceled)
		log.Warn("Build canceled", logfields.Duration(report.Duration()))
		return report, err
	case o.State() == StateCleaning:
		// clean never completed
		_ = o.sm.transition(StateFailed)
		o.recorder.IncBuildOutcome(metrics.BuildFailed)
		log.Error("Build aborted", logfields.Error(err))
		return report, err
	}

	_ = o.sm.transition(StateDone)
	if err != nil {
		o.recorder.IncBuildOutcome(metrics.BuildFailed)
		log.Error("Build finished with errors", slog.Any("failed", report.Failed), logfields.Duration(report.Duration()))
		return report, err
	}
	o.recorder.IncBuildOutcome(metrics.BuildSuccess)
	log.Info("Build finished", logfields.Files(report.written()), logfields.Duration(report.Duration()))
	return report, nil
}

// clean removes the whole destination tree. It is the only deletion in the system.
func (o *Orchestrator) clean(ctx context.Context) error {
	dest := o.table.Abs(o.table.DestBase())
	root := filepath.Clean(o.table.Root())
	if dest == root || !within(root, dest) {
		return ferrors.FileSystemError("refusing to clean a directory outside the project").WithPath(dest).Build()
	}
	if err := os.RemoveAll(dest); err != nil {
		return ferrors.FileSystemError("failed to clean destination").WithCause(err).WithPath(dest).Build()
	}

	o.mu.Lock()
	o.report.CleanedAt = time.Now()
	o.mu.Unlock()
	logfields.Logger(ctx).Debug("Destination cleaned", logfields.Path(o.table.DestBase()))
	return o.sm.transition(StateBuilding)
}

func (o *Orchestrator) stageTask(name string) Task {
	return &stageTask{name: name, stage: o.set.Get(name), collect: o.collect}
}

func (o *Orchestrator) collect(name string, res *stages.Result, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if res != nil {
		o.report.Stages = append(o.report.Stages, res)
	}
	if err != nil {
		o.report.Failed = append(o.report.Failed, name)
	}
}

type stageTask struct {
	name    string
	stage   *stages.Stage
	collect func(string, *stages.Result, error)
}

func (s *stageTask) Name() string { return s.name }

func (s *stageTask) Run(ctx context.Context) error {
	if s.stage == nil {
		return ferrors.InternalError("unknown stage").WithContext("stage", s.name).Build()
	}
	res, err := s.stage.Run(ctx)
	s.collect(s.name, res, err)
	return err
}

func (r *Report) written() int {
	n := 0
	for _, s := range r.Stages {
		n += len(s.Written)
	}
	return n
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !filepath.IsAbs(rel) && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
