package prompt

import (
	"os"

	"osananajimi-bot/backend/pkg/logger"
	"go.uber.org/zap"
)

// Placeholder is returned when the template file cannot be read.
// Callers must treat it as valid prompt content, not as an error signal.
const Placeholder = "（テンプレートが読み込めませんでした）"

// Load reads the prompt template at path. A missing or unreadable file
// is non-fatal: the fixed placeholder is substituted instead.
func Load(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Named("prompt").Warn("Prompt template not readable, using placeholder",
			zap.String("path", path),
			zap.Error(err),
		)
		return Placeholder
	}
	return string(data)
}
