package transcript

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jetgogoing/sage/pkg/model"
)

// Agent-report header patterns, in detection precedence order (spec §4.3):
//  1. "=== <type?> Report by @<name> ===" (standard)
//  2. "Agent Report: <name>" (simple)
//  3. "<!-- AGENT_METADATA {json} -->" comment block (generic)
//  4. leading "@<name> " mention
var (
	standardReportRe = regexp.MustCompile(`(?m)^===\s*(?:([A-Za-z ]+?)\s+)?Report by @(\S+)\s*===`)
	simpleReportRe    = regexp.MustCompile(`(?m)^Agent Report:\s*(\S+)`)
	mentionReportRe   = regexp.MustCompile(`(?m)^@(\S+)\s+`)
	metadataCommentRe = regexp.MustCompile(`(?s)<!--\s*AGENT_METADATA\s+(\{.*?\})\s*-->`)

	taskIDRe        = regexp.MustCompile(`(?i)task[_ ]?id[:\s]+(\S+)`)
	executionTimeRe = regexp.MustCompile(`(?i)execution[_ ]?time[:\s]+([0-9.]+\s*\w*)`)

	metricsRe        = regexp.MustCompile(`(?i)\b(metrics?|latency|throughput|duration)\b`)
	errorsRe         = regexp.MustCompile(`(?i)\b(error|failed|failure|exception)\b`)
	warningsRe       = regexp.MustCompile(`(?i)\b(warning|warn)\b`)
	successRe        = regexp.MustCompile(`(?i)\b(success|succeeded|completed|passed)\b`)
	recommendationsRe = regexp.MustCompile(`(?i)\b(recommend|suggestion|next steps?)\b`)
)

// DetectAgentReport inspects an assistant message body for one of the
// documented agent-report patterns and, if found, builds its
// AgentMetadata. Returns nil when content matches none of them.
func DetectAgentReport(content string) *model.AgentMetadata {
	var name string
	var reportType string
	var format model.AgentReportFormat
	var embedded map[string]any

	switch {
	case standardReportRe.MatchString(content):
		m := standardReportRe.FindStringSubmatch(content)
		reportType = strings.TrimSpace(m[1])
		name = m[2]
		format = model.AgentReportStandard
	case simpleReportRe.MatchString(content):
		m := simpleReportRe.FindStringSubmatch(content)
		name = m[1]
		format = model.AgentReportSimple
	case metadataCommentRe.MatchString(content):
		m := metadataCommentRe.FindStringSubmatch(content)
		var parsed map[string]any
		if err := json.Unmarshal([]byte(m[1]), &parsed); err == nil {
			embedded = parsed
			if v, ok := parsed["agent_name"].(string); ok {
				name = v
			}
		}
		format = model.AgentReportGeneric
	case mentionReportRe.MatchString(content):
		m := mentionReportRe.FindStringSubmatch(content)
		name = m[1]
		format = model.AgentReportMention
	default:
		return nil
	}

	meta := &model.AgentMetadata{
		AgentName:       name,
		ReportType:      reportType,
		Format:          format,
		Embedded:        embedded,
		ContentFeatures: detectContentFeatures(content),
	}

	if m := taskIDRe.FindStringSubmatch(content); m != nil {
		meta.TaskID = m[1]
	}
	if m := executionTimeRe.FindStringSubmatch(content); m != nil {
		meta.ExecutionTime = strings.TrimSpace(m[1])
	}
	if embedded != nil {
		if v, ok := embedded["task_id"].(string); ok && meta.TaskID == "" {
			meta.TaskID = v
		}
		if v, ok := embedded["execution_time"].(string); ok && meta.ExecutionTime == "" {
			meta.ExecutionTime = v
		}
	}

	meta.Completeness = float64(meta.ContentFeatures.Count()) / 6.0

	return meta
}

func detectContentFeatures(content string) model.ContentFeatures {
	return model.ContentFeatures{
		HasExecutionID:     taskIDRe.MatchString(content) || executionTimeRe.MatchString(content),
		HasMetrics:         metricsRe.MatchString(content),
		HasErrors:          errorsRe.MatchString(content),
		HasWarnings:        warningsRe.MatchString(content),
		HasSuccess:         successRe.MatchString(content),
		HasRecommendations: recommendationsRe.MatchString(content),
	}
}
