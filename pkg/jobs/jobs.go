package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slipverify/notifier/pkg/logger"
	"github.com/slipverify/notifier/pkg/notification"
	"github.com/slipverify/notifier/pkg/queue"
)

// Slip processing types.
const (
	ProcessingOCR    = "OCR"
	ProcessingVerify = "VERIFY"
)

// SlipProcessor runs OCR or verification for one slip.
type SlipProcessor interface {
	ProcessSlip(ctx context.Context, slip queue.SlipProcessingPayload) error
}

// ReportGenerator renders one report.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, report queue.ReportGenerationPayload) error
}

// Notifier queues the completion notice. *notification.Service implements it.
type Notifier interface {
	QueueNotification(ctx context.Context, msg notification.Message) (uuid.UUID, error)
}

// Notice describes the notification queued when a job finishes.
type Notice struct {
	Channel      notification.ChannelType
	TemplateCode string
	Title        string
	Body         string
}

// Option configures a job handler.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	notifier Notifier
	notice   Notice
	now      func() time.Time
}

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNotice queues n through notifier after every successful job. A
// failed notice is logged and does not fail the job.
func WithNotice(notifier Notifier, n Notice) Option {
	return func(o *options) {
		o.notifier = notifier
		o.notice = n
	}
}

// WithClock overrides the clock used for duration logging.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(component string, opts []Option) options {
	o := options{logger: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(logger.Component(component))
	return o
}

// NewSlipHandler returns the slip-processing queue handler.
func NewSlipHandler(p SlipProcessor, opts ...Option) (queue.Handler, error) {
	if p == nil {
		return nil, ErrProcessorRequired
	}
	o := newOptions("slip_processing", opts)

	return queue.NewHandler(func(ctx context.Context, env *queue.Envelope, slip *queue.SlipProcessingPayload) error {
		slip.ProcessingType = strings.ToUpper(strings.TrimSpace(slip.ProcessingType))
		if slip.ProcessingType == "" {
			slip.ProcessingType = ProcessingOCR
		}
		if slip.ProcessingType != ProcessingOCR && slip.ProcessingType != ProcessingVerify {
			return queue.Permanent(fmt.Errorf("%w: %q", ErrUnknownProcessingType, slip.ProcessingType))
		}

		log := o.logger.With(
			slog.String("slip_id", slip.SlipID.String()),
			logger.UserID(slip.UserID),
			logger.MessageID(env.MessageID),
			slog.String("processing_type", slip.ProcessingType),
		)
		log.LogAttrs(ctx, slog.LevelInfo, "processing slip", slog.String("image_url", slip.ImageURL))

		start := o.now()
		if err := p.ProcessSlip(ctx, *slip); err != nil {
			return fmt.Errorf("process slip %s: %w", slip.SlipID, err)
		}
		log.LogAttrs(ctx, slog.LevelInfo, "slip processed", logger.Duration(o.now().Sub(start)))

		o.notify(ctx, slip.UserID, env, map[string]string{
			"slipId":         slip.SlipID.String(),
			"processingType": slip.ProcessingType,
		})
		return nil
	}), nil
}

// NewReportHandler returns the report-generation queue handler.
func NewReportHandler(g ReportGenerator, opts ...Option) (queue.Handler, error) {
	if g == nil {
		return nil, ErrProcessorRequired
	}
	o := newOptions("report_generation", opts)

	return queue.NewHandler(func(ctx context.Context, env *queue.Envelope, report *queue.ReportGenerationPayload) error {
		if !report.StartDate.IsZero() && !report.EndDate.IsZero() && report.EndDate.Before(report.StartDate) {
			return queue.Permanent(fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod,
				report.EndDate.Format(time.DateOnly), report.StartDate.Format(time.DateOnly)))
		}

		log := o.logger.With(
			slog.String("report_id", report.ReportID.String()),
			slog.String("report_type", report.ReportType),
			logger.UserID(report.UserID),
			logger.MessageID(env.MessageID),
		)
		log.LogAttrs(ctx, slog.LevelInfo, "generating report")

		start := o.now()
		if err := g.GenerateReport(ctx, *report); err != nil {
			return fmt.Errorf("generate report %s: %w", report.ReportID, err)
		}
		log.LogAttrs(ctx, slog.LevelInfo, "report generated", logger.Duration(o.now().Sub(start)))

		o.notify(ctx, report.UserID, env, map[string]string{
			"reportId":   report.ReportID.String(),
			"reportType": report.ReportType,
		})
		return nil
	}), nil
}

func (o options) notify(ctx context.Context, userID uuid.UUID, env *queue.Envelope, placeholders map[string]string) {
	if o.notifier == nil || userID == uuid.Nil {
		return
	}
	msg := notification.Message{
		UserID:        userID,
		Channel:       o.notice.Channel,
		Priority:      notification.PriorityNormal,
		Title:         o.notice.Title,
		Body:          o.notice.Body,
		TemplateCode:  o.notice.TemplateCode,
		Placeholders:  placeholders,
		CorrelationID: env.CorrelationID,
	}
	id, err := o.notifier.QueueNotification(ctx, msg)
	if err != nil {
		o.logger.LogAttrs(ctx, slog.LevelWarn, "queue completion notice",
			logger.UserID(userID),
			logger.Error(err),
		)
		return
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "completion notice queued", logger.NotificationID(id))
}

// LogProcessor stands in for the processing services: it logs each job
// and succeeds.
type LogProcessor struct {
	Logger *slog.Logger
}

func (p LogProcessor) ProcessSlip(ctx context.Context, slip queue.SlipProcessingPayload) error {
	p.log().LogAttrs(ctx, slog.LevelInfo, "slip accepted for external processing",
		slog.String("slip_id", slip.SlipID.String()),
		slog.String("processing_type", slip.ProcessingType),
	)
	return nil
}

func (p LogProcessor) GenerateReport(ctx context.Context, report queue.ReportGenerationPayload) error {
	p.log().LogAttrs(ctx, slog.LevelInfo, "report accepted for external generation",
		slog.String("report_id", report.ReportID.String()),
		slog.String("report_type", report.ReportType),
	)
	return nil
}

func (p LogProcessor) log() *slog.Logger {
	if p.Logger == nil {
		return logger.Nop()
	}
	return p.Logger
}
