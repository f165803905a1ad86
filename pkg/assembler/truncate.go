package assembler

import (
	"github.com/pkoukk/tiktoken-go"
)

// truncationMarker is appended whenever content is cut short so a
// reader (or a later retrieval consumer) can tell the text was not
// stored/returned verbatim.
const truncationMarker = "\n...[truncated]"

// rowSizeGuardBytes is the default row-size guard from spec §4.5: an
// assistant response over this size is truncated with a visible
// marker before it is persisted.
const rowSizeGuardBytes = 1 << 20 // 1 MB

var encoding = loadEncoding()

func loadEncoding() *tiktoken.Tiktoken {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil
	}
	return enc
}

// TruncateBytes enforces the row-size guard: content longer than
// rowSizeGuardBytes is cut to that length with a trailing marker.
func TruncateBytes(content string) (string, bool) {
	if len(content) <= rowSizeGuardBytes {
		return content, false
	}
	cut := rowSizeGuardBytes - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	return content[:cut] + truncationMarker, true
}

// TruncateTokens cuts content to at most maxTokens tokens. Falls back
// to a byte-length heuristic (~4 bytes/token) if the tokenizer failed
// to load. get_context's context_window budget does not use it; that
// budget is counted in bytes.
func TruncateTokens(content string, maxTokens int) (string, bool) {
	if maxTokens <= 0 {
		return content, false
	}
	if encoding == nil {
		approxLimit := maxTokens * 4
		if len(content) <= approxLimit {
			return content, false
		}
		return content[:approxLimit] + truncationMarker, true
	}

	tokens := encoding.Encode(content, nil, nil)
	if len(tokens) <= maxTokens {
		return content, false
	}
	truncated := encoding.Decode(tokens[:maxTokens])
	return truncated + truncationMarker, true
}

// CountTokens returns content's token count under the shared encoding,
// or a byte-length approximation if the tokenizer is unavailable.
func CountTokens(content string) int {
	if encoding == nil {
		return len(content) / 4
	}
	return len(encoding.Encode(content, nil, nil))
}
