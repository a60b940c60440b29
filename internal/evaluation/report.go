package evaluation

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/streameval/internal/webhook"
)

const reportTimeLayout = "2006-01-02 15:04:05"

func buildReportText(s *Summary, timezone string, loc *time.Location) []byte {
	loc = safeLocation(loc)
	startText := s.Run.StartedAt.In(loc).Format(reportTimeLayout)
	endText := startText
	if s.Run.EndedAt != nil {
		endText = s.Run.EndedAt.In(loc).Format(reportTimeLayout)
	}

	lines := []string{
		fmt.Sprintf("Run: %s", s.Run.ID),
		fmt.Sprintf("Pipeline: %s (%s)", s.Run.Pipeline, s.Run.ModelType),
		fmt.Sprintf("Manifest: %s", s.Run.Manifest),
		fmt.Sprintf("Period: %s ~ %s (%s)", startText, endText, timezone),
		fmt.Sprintf("Status: %s", s.Run.Status),
		fmt.Sprintf("Utterances: %d total, %d complete, %d failed, %d not run", s.Run.Total, s.Run.Succeeded, s.Run.Failed, s.Run.Total-len(s.Outcomes)),
		"",
	}
	for _, o := range s.Outcomes {
		lines = append(lines, outcomeHeadline(o))
		if o.Sample.Reference != "" {
			lines = append(lines, fmt.Sprintf("  reference: %s", o.Sample.Reference))
		}
		if o.Result != nil {
			for _, st := range o.Result.Stages {
				marker := ""
				if !st.Final {
					marker = " (partial)"
				}
				lines = append(lines, fmt.Sprintf("  %d %s%s: %s", st.Depth, st.TaskType, marker, stageText(st.Text, st.AudioContent)))
			}
		}
	}
	return []byte(strings.Join(lines, "\n"))
}

func outcomeHeadline(o Outcome) string {
	elapsed := time.Duration(0)
	if o.Result != nil {
		elapsed = o.Result.Elapsed
	}
	status := "complete"
	if kind := o.ErrorKind(); kind != "" {
		status = kind
	}
	return fmt.Sprintf("[%s] %s %s", o.Sample.ID, status, formatElapsed(elapsed))
}

func stageText(text, audioContent string) string {
	if text != "" {
		return text
	}
	if audioContent != "" {
		return fmt.Sprintf("<audio %d bytes base64>", len(audioContent))
	}
	return "-"
}

func buildReportPayload(s *Summary, timezone string, loc *time.Location) webhook.RunReportPayload {
	loc = safeLocation(loc)
	endedAt := s.Run.StartedAt
	if s.Run.EndedAt != nil {
		endedAt = *s.Run.EndedAt
	}
	durationSeconds := int64(endedAt.Sub(s.Run.StartedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	results := make([]webhook.UtteranceReportPayload, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		item := webhook.UtteranceReportPayload{
			UtteranceID: o.Sample.ID,
			Reference:   o.Sample.Reference,
			ErrorKind:   o.ErrorKind(),
			Stages:      []webhook.StageReportPayload{},
		}
		if r := o.Result; r != nil {
			item.SessionID = r.SessionID
			item.Hypothesis = hypothesis(r)
			item.Complete = r.Complete
			item.ChunksSent = r.ChunksSent
			item.LatencyMs = r.Elapsed.Milliseconds()
			for _, st := range r.Stages {
				item.Stages = append(item.Stages, webhook.StageReportPayload{
					Depth:    st.Depth,
					TaskType: string(st.TaskType),
					Text:     st.Text,
					Final:    st.Final,
				})
			}
		}
		results = append(results, item)
	}

	return webhook.RunReportPayload{
		SchemaVersion:   webhook.RunReportSchemaVersion,
		RunID:           s.Run.ID,
		Pipeline:        s.Run.Pipeline,
		ModelType:       s.Run.ModelType,
		Manifest:        s.Run.Manifest,
		Status:          string(s.Run.Status),
		StartAt:         s.Run.StartedAt.In(loc).Format(time.RFC3339),
		EndAt:           endedAt.In(loc).Format(time.RFC3339),
		Timezone:        timezone,
		DurationSeconds: durationSeconds,
		Total:           s.Run.Total,
		Succeeded:       s.Run.Succeeded,
		Failed:          s.Run.Failed,
		Results:         results,
	}
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
