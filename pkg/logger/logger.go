package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/booking-reminders/pkg/config"
	"github.com/noah-isme/booking-reminders/pkg/middleware/requestid"
)

func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build(zap.Fields(zap.String("service", "booking-reminders")))
}

// GinMiddleware writes one access log line per request. Server errors log at error level.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if status >= 500 {
			l.Error("http_request", fields...)
			return
		}
		l.Info("http_request", fields...)
	}
}

// SchedulerLogger adapts zap to the gocron logger interface.
type SchedulerLogger struct {
	sugar *zap.SugaredLogger
}

var _ gocron.Logger = (*SchedulerLogger)(nil)

// NewSchedulerLogger wraps l for gocron.WithLogger.
func NewSchedulerLogger(l *zap.Logger) *SchedulerLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &SchedulerLogger{sugar: l.Named("scheduler").Sugar()}
}

func (s *SchedulerLogger) Debug(msg string, args ...any) { s.sugar.Debugw(msg, args...) }
func (s *SchedulerLogger) Info(msg string, args ...any)  { s.sugar.Infow(msg, args...) }
func (s *SchedulerLogger) Warn(msg string, args ...any)  { s.sugar.Warnw(msg, args...) }
func (s *SchedulerLogger) Error(msg string, args ...any) { s.sugar.Errorw(msg, args...) }
