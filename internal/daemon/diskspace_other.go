//go:build !unix

package daemon

import (
	"errors"
	"log/slog"

	"reelcast/internal/logging"
)

func logFreeSpace(logger *slog.Logger, root string) {
	logger.Debug("free space check skipped", logging.String("path", root), logging.Error(errors.ErrUnsupported))
}
