// Package semantic is the Semantic Analyser (spec §4.8): builds a
// QueryContext from a raw query string via ordered keyword-pattern
// matching, with no ML model involved. Grounded on the teacher's
// keyword-classifier style in pkg/reasoning's intent detection, ported
// to sage's query-analysis domain.
package semantic

import (
	"regexp"
	"strings"

	"github.com/jetgogoing/sage/pkg/model"
)

// Analyze builds a QueryContext for rawQuery. recentSessions carries
// prior-session keyword history for downstream temporal/context
// scoring (spec §4.9); Analyze itself only classifies the query.
func Analyze(rawQuery string, recentSessions []model.SessionHistoryEntry) model.QueryContext {
	qc := model.QueryContext{
		RawQuery:       rawQuery,
		Type:           classifyType(rawQuery),
		Keywords:       extractKeywords(rawQuery),
		Intent:         classifyIntent(rawQuery),
		RecentSessions: recentSessions,
	}
	qc.Tone = classifyTone(rawQuery)
	qc.Urgency = computeUrgency(qc.Tone, rawQuery)
	return qc
}

// Ordered pattern lists: first category whose pattern matches wins
// (spec §4.8: diagnostic > technical > procedural > conceptual,
// conversational is the fallback).

var diagnosticPatterns = []string{
	"error", "exception", "fail", "crash", "bug", "broken", "not working", "doesn't work", "traceback", "stack trace",
	"debug", "fix", "wrong", "issue",
	"报错", "错误", "异常", "崩溃", "失败", "bug", "修复", "调试", "问题",
}

var technicalPatterns = []string{
	"function", "method", "class", "api", "config", "database", "query", "algorithm", "implementation",
	"library", "framework", "syntax", "compile", "deploy", "performance", "memory", "thread", "async",
	"函数", "方法", "接口", "配置", "数据库", "查询", "算法", "实现", "框架", "性能", "内存", "线程",
}

var proceduralPatterns = []string{
	"how do i", "how to", "steps to", "walk me through", "guide", "tutorial", "instructions",
	"怎么做", "如何", "步骤", "教程", "指南",
}

var conceptualPatterns = []string{
	"what is", "why does", "explain", "difference between", "concept", "meaning of", "understand",
	"什么是", "为什么", "解释", "区别", "概念", "理解",
}

func classifyType(query string) model.QueryType {
	q := strings.ToLower(query)
	switch {
	case matchAny(q, diagnosticPatterns):
		return model.QueryDiagnostic
	case matchAny(q, technicalPatterns):
		return model.QueryTechnical
	case matchAny(q, proceduralPatterns):
		return model.QueryProcedural
	case matchAny(q, conceptualPatterns):
		return model.QueryConceptual
	default:
		return model.QueryConversational
	}
}

func matchAny(haystack string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(haystack, p) {
			return true
		}
	}
	return false
}

// Keyword extraction: camelCase identifiers, snake_case identifiers,
// and hits against a curated technical-term lexicon (spec §4.8).

var camelCaseRe = regexp.MustCompile(`\b[a-z]+(?:[A-Z][a-z0-9]*)+\b`)
var snakeCaseRe = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:_[a-z0-9]+)+\b`)

var technicalLexicon = map[string]bool{
	// programming
	"function": true, "variable": true, "loop": true, "recursion": true, "pointer": true, "interface": true,
	"struct": true, "goroutine": true, "channel": true, "closure": true,
	// database
	"query": true, "index": true, "transaction": true, "schema": true, "migration": true, "join": true,
	// system
	"process": true, "thread": true, "daemon": true, "kernel": true, "syscall": true, "signal": true,
	// network
	"socket": true, "tcp": true, "http": true, "dns": true, "latency": true, "bandwidth": true,
	// data
	"dataset": true, "vector": true, "embedding": true, "tensor": true,
}

func extractKeywords(query string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		w = strings.ToLower(w)
		if w == "" || seen[w] {
			return
		}
		seen[w] = true
		out = append(out, w)
	}

	for _, m := range camelCaseRe.FindAllString(query, -1) {
		add(m)
	}
	for _, m := range snakeCaseRe.FindAllString(query, -1) {
		add(m)
	}
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,!?;:()[]{}\"'")
		if technicalLexicon[word] {
			add(word)
		}
	}
	return out
}

// Emotion and intent keyword classifiers (spec §4.8).

var toneKeywords = map[model.EmotionalTone][]string{
	model.ToneUrgent:     {"urgent", "asap", "immediately", "critical", "emergency", "now", "紧急", "立刻", "马上"},
	model.ToneFrustrated: {"frustrated", "annoying", "sick of", "fed up", "ugh", "烦", "讨厌"},
	model.ToneConfused:   {"confused", "don't understand", "lost", "unclear", "not sure", "困惑", "不明白"},
	model.ToneCurious:    {"curious", "wonder", "interested", "would like to know", "好奇", "想知道"},
}

func classifyTone(query string) model.EmotionalTone {
	q := strings.ToLower(query)
	// Checked in priority order: urgent and frustrated read as stronger
	// signal than curiosity or confusion when multiple match.
	for _, tone := range []model.EmotionalTone{model.ToneUrgent, model.ToneFrustrated, model.ToneConfused, model.ToneCurious} {
		if matchAny(q, toneKeywords[tone]) {
			return tone
		}
	}
	return model.ToneNeutral
}

var intentKeywords = map[string][]string{
	"implementation":  {"implement", "build", "create", "write", "add"},
	"explanation":     {"explain", "what is", "why", "describe"},
	"troubleshooting": {"fix", "debug", "error", "not working", "broken"},
	"comparison":      {"vs", "versus", "compare", "difference between", "better than"},
	"optimization":    {"optimize", "faster", "improve performance", "speed up", "reduce"},
}

func classifyIntent(query string) []string {
	q := strings.ToLower(query)
	var out []string
	for _, intent := range []string{"implementation", "explanation", "troubleshooting", "comparison", "optimization"} {
		if matchAny(q, intentKeywords[intent]) {
			out = append(out, intent)
		}
	}
	return out
}

// computeUrgency is max(baseline_from_emotion, keyword_override),
// clamped to 1..5 (spec §4.8).
func computeUrgency(tone model.EmotionalTone, query string) int {
	baseline := 1
	switch tone {
	case model.ToneUrgent:
		baseline = 5
	case model.ToneFrustrated:
		baseline = 4
	case model.ToneConfused:
		baseline = 3
	case model.ToneCurious:
		baseline = 2
	}

	override := 1
	q := strings.ToLower(query)
	switch {
	case matchAny(q, []string{"urgent", "asap", "emergency", "紧急"}):
		override = 5
	case matchAny(q, []string{"soon", "quickly", "today"}):
		override = 3
	}

	urgency := baseline
	if override > urgency {
		urgency = override
	}
	if urgency < 1 {
		urgency = 1
	}
	if urgency > 5 {
		urgency = 5
	}
	return urgency
}
