// internal/importer/poller.go
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	custom_errors "scm-project-sync/internal/errors"
	"scm-project-sync/internal/model"
)

const (
	// DefaultPollInterval is the wait between two status checks of a job.
	DefaultPollInterval = 5 * time.Second
	// DefaultPollTimeout bounds a whole polling session.
	DefaultPollTimeout = 30 * time.Minute

	pollConcurrency      = 10
	maxConsecutiveErrors = 3
)

// StatusClient fetches the status of an import job.
type StatusClient interface {
	PollImportStatus(ctx context.Context, pollingURL string) (*model.ImportJobStatus, error)
}

// Poller drives submitted import jobs to a terminal state.
type Poller struct {
	client   StatusClient
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(client StatusClient, interval, timeout time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{client: client, interval: interval, timeout: timeout, logger: logger}
}

type jobState struct {
	handle model.ImportJobHandle
	status *model.ImportJobStatus
	errs   int
	reason string
	done   bool

	// written by the poll tick goroutine owning this job
	tickStatus *model.ImportJobStatus
	tickErr    error
}

// Poll queries every job until all are terminal or the timeout elapses.
// Jobs still pending at the deadline are reported as failed; jobs already
// complete keep their results.
func (p *Poller) Poll(ctx context.Context, handles []model.ImportJobHandle) *model.ImportResult {
	jobs := make([]*jobState, len(handles))
	for i, h := range handles {
		jobs[i] = &jobState{handle: h}
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.tick(pollCtx, jobs)
		if remaining(jobs) == 0 {
			break
		}
		p.logger.Debug("Import jobs still pending", "pending", remaining(jobs))

		if pollCtx.Err() == nil {
			select {
			case <-ticker.C:
				continue
			case <-pollCtx.Done():
			}
		}

		reason := pollCtx.Err().Error()
		if errors.Is(pollCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			reason = (&custom_errors.TimeoutError{Operation: "import polling", After: p.timeout}).Error()
		}
		for _, j := range jobs {
			if !j.done {
				j.done = true
				j.reason = reason
			}
		}
		break
	}

	return collect(jobs)
}

// tick fetches the status of every pending job once.
func (p *Poller) tick(ctx context.Context, jobs []*jobState) {
	var g errgroup.Group
	g.SetLimit(pollConcurrency)
	for _, j := range jobs {
		if j.done {
			continue
		}
		g.Go(func() error {
			j.tickStatus, j.tickErr = p.client.PollImportStatus(ctx, j.handle.PollingURL)
			return nil
		})
	}
	_ = g.Wait()

	for _, j := range jobs {
		if j.done {
			continue
		}
		if j.tickErr != nil {
			if ctx.Err() != nil {
				continue
			}
			j.errs++
			p.logger.Warn("Failed to poll import job", "url", j.handle.PollingURL, "attempt", j.errs, "error", j.tickErr)
			if j.errs >= maxConsecutiveErrors {
				j.done = true
				j.reason = fmt.Sprintf("polling failed: %v", j.tickErr)
			}
			continue
		}
		j.errs = 0
		j.status = j.tickStatus
		if j.status != nil && j.status.Status.Terminal() {
			j.done = true
		}
	}
}

func remaining(jobs []*jobState) int {
	n := 0
	for _, j := range jobs {
		if !j.done {
			n++
		}
	}
	return n
}

// collect flattens job outcomes, keeping each sub-target's own verdict.
func collect(jobs []*jobState) *model.ImportResult {
	res := &model.ImportResult{}
	for _, j := range jobs {
		if j.status == nil || !j.status.Status.Terminal() {
			reason := j.reason
			if reason == "" {
				reason = "import job did not complete"
			}
			res.FailedTargets = append(res.FailedTargets, model.FailedImport{
				Handle: j.handle,
				Status: model.ImportStatusFailed,
				Reason: reason,
			})
			continue
		}
		if len(j.status.Logs) == 0 && j.status.Status == model.ImportStatusFailed {
			res.FailedTargets = append(res.FailedTargets, model.FailedImport{
				Handle: j.handle,
				Status: model.ImportStatusFailed,
				Reason: "import job failed",
			})
			continue
		}
		for _, l := range j.status.Logs {
			switch l.Status {
			case model.ImportStatusComplete:
				for _, pr := range l.Projects {
					if pr.Success {
						res.Projects = append(res.Projects, pr)
					} else {
						res.FailedProjects = append(res.FailedProjects, pr)
					}
				}
			case model.ImportStatusFailed:
				res.FailedTargets = append(res.FailedTargets, model.FailedImport{
					Handle:   j.handle,
					LogName:  l.Name,
					Status:   model.ImportStatusFailed,
					Reason:   "target import failed",
					Projects: l.Projects,
				})
			default:
				res.FailedTargets = append(res.FailedTargets, model.FailedImport{
					Handle:   j.handle,
					LogName:  l.Name,
					Status:   l.Status,
					Reason:   "target import did not complete",
					Projects: l.Projects,
				})
			}
		}
	}
	return res
}
