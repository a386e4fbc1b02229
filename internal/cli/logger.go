package cli

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// runLogger wraps zap for verbose debug output tagged with the run id.
type runLogger struct {
	sugared *zap.SugaredLogger
}

func newRunLogger(globals *Globals) *runLogger {
	if globals == nil || !globals.Verbose || globals.Stderr == nil {
		return &runLogger{}
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		globals.stderrSyncer(),
		zap.NewAtomicLevelAt(zap.DebugLevel),
	)
	logger := zap.New(core).With(zap.String("run_id", globals.RunID))
	return &runLogger{sugared: logger.Sugar()}
}

// stderrSyncer serializes every stderr writer of a run: watch workers log
// and emit text summaries concurrently.
func (g *Globals) stderrSyncer() zapcore.WriteSyncer {
	if g.stderr == nil {
		g.stderr = zapcore.Lock(zapcore.AddSync(g.Stderr))
	}
	return g.stderr
}

// With returns a logger carrying extra key/value context.
func (l *runLogger) With(kv ...interface{}) *runLogger {
	if l.sugared == nil {
		return l
	}
	return &runLogger{sugared: l.sugared.With(kv...)}
}

func (l *runLogger) Debug(format string, args ...interface{}) {
	if l.sugared == nil {
		return
	}
	l.sugared.Debugf(format, args...)
}

func (l *runLogger) Sync() {
	if l.sugared != nil {
		_ = l.sugared.Sync()
	}
}
