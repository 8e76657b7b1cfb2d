package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/intakebot/internal/report"
)

// newReportTask creates the scheduled task function for generating a
// spreadsheet report for the given period and mailing it to the head office.
func newReportTask(deps TaskDeps, period report.Period) ScheduledTaskFunc {
	log := deps.Logger.With("task", fmt.Sprintf("%s_report", period))

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled report task...")
		startTime := time.Now()

		path, err := deps.Reports.Generate(ctx, period)
		if err != nil {
			log.ErrorContext(ctx, "Report generation failed", "error", err)
			return fmt.Errorf("report generation failed: %w", err)
		}

		headOffice := deps.Config.HeadOffice()
		if headOffice.Email == "" {
			log.WarnContext(ctx, "Head office has no email configured, report kept on disk only", "path", path)
			return nil
		}

		subject := fmt.Sprintf("Intake report (%s)", period)
		body := fmt.Sprintf("Scheduled %s intake report generated at %s.", period, time.Now().Format(time.RFC1123))
		if err := deps.Email.Send(ctx, subject, body, headOffice.Email, path); err != nil {
			log.ErrorContext(ctx, "Failed to email report", "error", err, "path", path)
			return fmt.Errorf("failed to email report: %w", err)
		}

		log.InfoContext(ctx, "Scheduled report task completed", "path", path, "duration", time.Since(startTime))
		return nil
	}
}
