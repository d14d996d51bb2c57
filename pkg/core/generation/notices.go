package generation

import (
	"errors"
	"fmt"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

// FallbackNotice announces the switch from failed to the fallback model.
func FallbackNotice(failed chat.ModelID) string {
	return fmt.Sprintf("\n\n> ⚡ **Auto-Switch**: API Error detected on %s. Switching to **Gemini 2.0 Flash** to maintain connection...\n\n---\n\n", failed)
}

// ConnectionErrorNotice ends a stream whose attempt on the fallback model failed.
func ConnectionErrorNotice(err error) string {
	return "\n\n**[Connection Error]**\n" + errorMessage(err)
}

func errorMessage(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr.Message != "" {
		return coreErr.Message
	}
	return err.Error()
}
