package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"toolcrib-api/internal/middleware"
	"toolcrib-api/pkg/logger"
	"toolcrib-api/pkg/uid"
)

// DefaultSchedule emits one event every five seconds.
const DefaultSchedule = "@every 5s"

// Simulator periodically sends a synthetic event to its sink.
type Simulator struct {
	cron     *cron.Cron
	sink     Sink
	gen      *Generator
	schedule string
	timeout  time.Duration
	log      *zap.Logger
}

// New validates the schedule and prepares the simulator. Call Start to run.
func New(sink Sink, gen *Generator, schedule string, log *zap.Logger) (*Simulator, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	s := &Simulator{
		cron:     cron.New(),
		sink:     sink,
		gen:      gen,
		schedule: schedule,
		timeout:  10 * time.Second,
		log:      logger.Named(log, "simulator"),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid simulator schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Simulator) Start() {
	s.log.Info("starting simulator", zap.String("schedule", s.schedule))
	s.cron.Start()
}

// Stop halts the schedule and returns a context that is done once any
// running tick has finished.
func (s *Simulator) Stop() context.Context {
	s.log.Info("stopping simulator")
	return s.cron.Stop()
}

func (s *Simulator) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_ = s.Tick(middleware.WithRequestID(ctx, "sim-"+uid.Short()))
}

// Tick generates and sends a single event.
func (s *Simulator) Tick(ctx context.Context) error {
	draft := s.gen.Next()
	outcome, err := s.sink.Send(ctx, draft)
	if err != nil {
		s.log.Warn("synthetic event failed",
			zap.String("event", draft.Event),
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.Error(err))
		return err
	}
	s.log.Debug("synthetic event sent",
		zap.String("event", draft.Event),
		zap.String("tool_id", draft.ToolID),
		zap.String("outcome", outcome))
	return nil
}
