package evaluation

import (
	"fmt"

	"github.com/foxseedlab/streameval/internal/repository"
)

const (
	messageReportTitleCompleted = ":white_check_mark: **Evaluation run finished.**"
	messageReportTitleCanceled  = ":pause_button: **Evaluation run was canceled.**"
	messageReportTitleFailed    = ":warning: **Evaluation run finished with failures.**"
	messageReportSummaryFormat  = "-# %s / %s: %d of %d utterances complete, %d failed."
	messageReportAttachment     = ":page_facing_up: **Per-utterance report attached.**"
)

func reportTitle(s *Summary) string {
	switch {
	case s.Run.Status == repository.RunStatusCanceled:
		return messageReportTitleCanceled
	case s.Run.Failed > 0:
		return messageReportTitleFailed
	default:
		return messageReportTitleCompleted
	}
}

func reportMessage(s *Summary) string {
	return reportTitle(s) + "\n" +
		fmt.Sprintf(messageReportSummaryFormat, s.Run.Pipeline, s.Run.ModelType, s.Run.Succeeded, s.Run.Total, s.Run.Failed) + "\n" +
		messageReportAttachment
}

func reportFilename(runID string) string {
	return fmt.Sprintf("evaluation-%s.txt", runID)
}
