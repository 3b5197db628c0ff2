package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pathfinder-workers/internal/common/config"
	apperrors "pathfinder-workers/internal/common/errors"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/common/metrics"
	"pathfinder-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobObserver records per-job telemetry; *observability.Observability satisfies it.
type JobObserver interface {
	RecordJob(ctx context.Context, taskType, status string, duration time.Duration)
}

// Runner carries the plumbing every handler shares: schema validation, decoding,
// completion, failure delivery and metrics.
type Runner struct {
	TaskType  string
	Timeout   time.Duration
	Validator *validation.Validator
	Observer  JobObserver
	Logger    logger.Logger

	errors *apperrors.ErrorHandler
}

func NewRunner(taskType string, timeout time.Duration, v *validation.Validator, obs JobObserver, log logger.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log = log.With(map[string]interface{}{"taskType": taskType})
	return &Runner{
		TaskType:  taskType,
		Timeout:   timeout,
		Validator: v,
		Observer:  obs,
		Logger:    log,
		errors:    apperrors.NewErrorHandler(log),
	}
}

// Job is the per-activation state returned by Begin.
type Job struct {
	Ctx    context.Context
	cancel context.CancelFunc
	start  time.Time
	runner *Runner
	client worker.JobClient
	job    entities.Job
}

// Begin starts the job timer and derives a context bounded by the runner timeout.
func (r *Runner) Begin(client worker.JobClient, job entities.Job) *Job {
	metrics.WorkerJobsActive.WithLabelValues(r.TaskType).Inc()
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)

	r.Logger.Info("Processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	return &Job{Ctx: ctx, cancel: cancel, start: time.Now(), runner: r, client: client, job: job}
}

// Decode validates the raw variables against the registered input schema, then unmarshals into dst.
func (j *Job) Decode(dst interface{}) error {
	raw := []byte(j.job.GetVariables())
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	if v := j.runner.Validator; v != nil {
		res, err := v.ValidateInput(j.runner.TaskType, raw)
		if err != nil {
			return apperrors.NewValidationError("job variables are not valid JSON",
				apperrors.Field("variables", "INVALID_JSON", "%v", err))
		}
		if verr := res.ToError(); verr != nil {
			return verr
		}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.NewValidationError("failed to decode job variables",
			apperrors.Field("variables", "INVALID_JSON", "%v", err))
	}
	return nil
}

// Complete sends output as job variables and closes the job.
func (j *Job) Complete(output interface{}) {
	defer j.finish()
	r := j.runner

	if r.Validator != nil {
		if res, err := r.Validator.ValidateOutput(r.TaskType, output); err == nil && !res.Valid {
			r.Logger.Warn("Output does not match registered schema", map[string]interface{}{
				"jobKey": j.job.GetKey(),
				"errors": res.Errors,
			})
		}
	}

	cmd, err := j.client.NewCompleteJobCommand().JobKey(j.job.GetKey()).VariablesFromObject(output)
	if err != nil {
		j.fail(apperrors.NewInternalError(fmt.Errorf("encode output: %w", err)))
		return
	}
	if _, err := cmd.Send(j.Ctx); err != nil {
		r.Logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": j.job.GetKey(),
			"error":  err.Error(),
		})
		j.record("send_failed", time.Since(j.start))
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.TaskType).Inc()
	j.record("completed", time.Since(j.start))
	r.Logger.Info("Job completed", map[string]interface{}{
		"jobKey":     j.job.GetKey(),
		"durationMs": time.Since(j.start).Milliseconds(),
	})
}

// Fail delivers err to the broker as a retryable failure or a BPMN error.
func (j *Job) Fail(err error) {
	defer j.finish()
	j.fail(err)
}

func (j *Job) fail(err error) {
	code, outcome := j.runner.errors.HandleJobError(j.Ctx, j.client, j.job, err)
	metrics.WorkerJobsFailed.WithLabelValues(j.runner.TaskType, code).Inc()
	j.record(string(outcome), time.Since(j.start))
}

func (j *Job) record(status string, d time.Duration) {
	metrics.WorkerJobDuration.WithLabelValues(j.runner.TaskType).Observe(d.Seconds())
	if j.runner.Observer != nil {
		j.runner.Observer.RecordJob(j.Ctx, j.runner.TaskType, status, d)
	}
}

func (j *Job) finish() {
	metrics.WorkerJobsActive.WithLabelValues(j.runner.TaskType).Dec()
	j.cancel()
}

// StartWorker opens a job worker for taskType. Disabled workers return nil.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("Worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("Worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return jw
}
