// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for the memory service: spans around embed/search/rerank and
// counters/histograms for tool calls and retrieval latency.
package observability

const (
	AttrServiceName     = "service.name"
	AttrServiceVersion  = "service.version"
	AttrServiceInstance = "service.instance.id"
)

const (
	// AttrGenAISystem identifies the embedding/rerank system in use.
	AttrGenAISystem         = "gen_ai.system"
	AttrGenAIOperationName  = "gen_ai.operation.name"
	AttrGenAIRequestModel   = "gen_ai.request.model"
	AttrGenAIUsageInputToks = "gen_ai.usage.input_tokens"
	AttrGenAIToolName       = "gen_ai.tool.name"
	AttrGenAIToolCallID     = "gen_ai.tool.call.id"
)

const (
	AttrSageSessionID    = "sage.session_id"
	AttrSageTurnID       = "sage.turn_id"
	AttrSageQuery        = "sage.query"
	AttrSageResultCount  = "sage.result_count"
	AttrSageMaxResults   = "sage.max_results"
	AttrSageCacheHit     = "sage.cache_hit"
	AttrSageRerankUsed   = "sage.rerank_used"
	AttrSageToolArgs     = "sage.tool.args"
	AttrSageToolResponse = "sage.tool.response"
)

const (
	AttrHTTPMethod        = "http.method"
	AttrHTTPPath          = "http.route"
	AttrHTTPStatusCode    = "http.status_code"
	AttrHTTPRequestSize   = "http.request.body.size"
	AttrHTTPResponseSize  = "http.response.body.size"
)

const (
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

const (
	// SpanToolExecution wraps one tools/call dispatch in the Tool Server.
	SpanToolExecution = "sage.tool.execute"
	// SpanMemorySearch wraps one Retrieval Engine pass.
	SpanMemorySearch = "sage.memory.search"
	// SpanMemorySave wraps one save_conversation persist.
	SpanMemorySave = "sage.memory.save"
	// SpanEmbedRequest wraps one Embedding Client call.
	SpanEmbedRequest = "sage.embed.request"
	// SpanRerankRequest wraps one Reranker Client call.
	SpanRerankRequest = "sage.rerank.request"
	// SpanHTTPRequest wraps one inbound HTTP request.
	SpanHTTPRequest = "sage.http.request"
)

const (
	DefaultServiceName  = "sage"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4318"
	DefaultMetricsPath  = "/metrics"
)

const (
	OpEmbeddings = "embeddings"
	OpRerank     = "rerank"
	OpToolCall   = "execute_tool"
)
