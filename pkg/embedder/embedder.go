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

// Package embedder is the Embedding Client (spec §4.6): maps a string
// to a fixed-dimension float vector via a remote provider, with
// explicit timeout, bounded retries and a typed error kind on failure.
// Adapted from kadirpekel/hector's pkg/embedders provider interface.
package embedder

import (
	"context"
)

// Embedder produces vector embeddings from text. Sage has one
// concrete implementation (Client, the siliconflow-compatible
// provider from spec §6), but the interface is kept so tests and the
// Storage Layer can substitute a fake.
type Embedder interface {
	// Embed converts text to a vector embedding. Never returns a zero
	// vector silently: failure is always a typed error.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the configured embedding vector dimension.
	Dimension() int

	// Model returns the model name being used.
	Model() string
}
