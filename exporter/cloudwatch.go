package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs/cloudwatchlogsiface"

	"github.com/ashita-ai/kiseki"
)

// CloudWatchConfig configures the AWS CloudWatch Logs exporter. Credentials
// come from the standard AWS chain (env, shared config, instance role).
type CloudWatchConfig struct {
	LogGroup      string // default "/genai/traces"
	Region        string // default "us-east-1"
	BatchSize     int    // default 10
	FlushInterval time.Duration
	Logger        *slog.Logger

	// Client overrides the CloudWatch Logs API, mainly for tests.
	Client cloudwatchlogsiface.CloudWatchLogsAPI
}

// CloudWatch ships spans as JSON log events. Each exporter instance writes to
// its own log stream, created at Start, so concurrent processes never fight
// over sequence tokens.
type CloudWatch struct {
	svc      cloudwatchlogsiface.CloudWatchLogsAPI
	logGroup string
	stream   string
	logger   *slog.Logger
	batch    *batcher

	mu       sync.Mutex
	seqToken *string
}

// NewCloudWatch builds the exporter. Session construction fails only on
// invalid local AWS configuration.
func NewCloudWatch(cfg CloudWatchConfig) (*CloudWatch, error) {
	svc := cfg.Client
	if svc == nil {
		sess, err := session.NewSession(aws.NewConfig().WithRegion(strOr(cfg.Region, "us-east-1")))
		if err != nil {
			return nil, fmt.Errorf("exporter: cloudwatch session: %w", err)
		}
		svc = cloudwatchlogs.New(sess)
	}

	e := &CloudWatch{
		svc:      svc,
		logGroup: strOr(cfg.LogGroup, "/genai/traces"),
		stream:   streamName(time.Now()),
		logger:   orDefault(cfg.Logger),
	}
	e.batch = newBatcher("cloudwatch", intOr(cfg.BatchSize, 10), durOr(cfg.FlushInterval, 5*time.Second), e.logger, e.sendBatch)
	return e, nil
}

// streamName derives a per-instance stream name; colons and dots are not
// valid in stream names.
func streamName(now time.Time) string {
	ts := now.UTC().Format(time.RFC3339Nano)
	ts = strings.ReplaceAll(ts, ":", "-")
	ts = strings.ReplaceAll(ts, ".", "-")
	return "kiseki-" + ts
}

// Start creates the log stream and launches the flush loop. A stream that
// already exists is fine.
func (e *CloudWatch) Start(ctx context.Context) error {
	_, err := e.svc.CreateLogStreamWithContext(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(e.logGroup),
		LogStreamName: aws.String(e.stream),
	})
	if err != nil {
		var aerr awserr.Error
		if !errors.As(err, &aerr) || aerr.Code() != cloudwatchlogs.ErrCodeResourceAlreadyExistsException {
			return fmt.Errorf("exporter: cloudwatch create log stream: %w", err)
		}
	}
	e.batch.start(ctx)
	return nil
}

func (e *CloudWatch) Stop(ctx context.Context) error {
	e.batch.stop(ctx)
	return nil
}

func (e *CloudWatch) Flush(ctx context.Context) {
	e.batch.flush(ctx)
}

func (e *CloudWatch) Export(ctx context.Context, sd kiseki.SpanData) bool {
	return e.batch.add(ctx, sd)
}

func (e *CloudWatch) ExportBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	return e.sendBatch(ctx, spans)
}

// HealthCheck describes the log group to verify reachability and permissions.
func (e *CloudWatch) HealthCheck(ctx context.Context) bool {
	_, err := e.svc.DescribeLogGroupsWithContext(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(e.logGroup),
		Limit:              aws.Int64(1),
	})
	return err == nil
}

// toLogEvents converts spans to log events sorted by timestamp ascending, as
// PutLogEvents requires.
func (e *CloudWatch) toLogEvents(spans []kiseki.SpanData) []*cloudwatchlogs.InputLogEvent {
	sorted := make([]kiseki.SpanData, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	events := make([]*cloudwatchlogs.InputLogEvent, 0, len(sorted))
	for _, sd := range sorted {
		msg, err := json.Marshal(sd)
		if err != nil {
			e.logger.Error("exporter: cloudwatch span serialize failed", "error", err)
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, sd.Timestamp)
		if err != nil {
			ts = time.Now()
		}
		events = append(events, &cloudwatchlogs.InputLogEvent{
			Timestamp: aws.Int64(ts.UnixMilli()),
			Message:   aws.String(string(msg)),
		})
	}
	return events
}

func (e *CloudWatch) sendBatch(ctx context.Context, spans []kiseki.SpanData) bool {
	if len(spans) == 0 {
		return true
	}
	events := e.toLogEvents(spans)
	if len(events) == 0 {
		return false
	}

	// The sequence token chains puts on one stream, so sends are serialized.
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.svc.PutLogEventsWithContext(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(e.logGroup),
		LogStreamName: aws.String(e.stream),
		LogEvents:     events,
		SequenceToken: e.seqToken,
	})
	if err != nil {
		e.logger.Error("exporter: cloudwatch put log events failed", "error", err, "batch_size", len(events))
		return false
	}
	e.seqToken = out.NextSequenceToken
	return true
}
