// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"net/http"
	"time"
)

// NoopManager returns a no-operation Manager that does nothing.
// Use this when observability is completely disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// NoopMetrics is a Metrics implementation that does nothing, used when no
// otel MeterProvider-backed recorder has been installed.
type NoopMetrics struct{}

func (NoopMetrics) RecordToolExecution(_ context.Context, _ string, _ time.Duration, _ error)       {}
func (NoopMetrics) RecordMemorySearch(_ context.Context, _ time.Duration, _ int, _ error)            {}
func (NoopMetrics) RecordHTTPRequest(_ context.Context, _, _ string, _ int, _ time.Duration, _ int) {}

// Recorder defines the Prometheus-client-direct recording surface backed by
// the registry in metrics.go. This allows dependency injection and easier
// testing of call sites that only need tool/memory/HTTP metrics.
type Recorder interface {
	RecordToolCall(toolName string, duration time.Duration)
	RecordToolError(toolName, errorType string)
	RecordMemorySearch(queryType string, duration time.Duration)
	RecordMemorySaved(sessionID string)
	RecordCacheResult(hit bool)
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, reqSize, respSize int64)
	Handler() http.Handler
}

var _ Recorder = (*Metrics)(nil)
