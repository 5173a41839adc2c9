//go:build unix

package daemon

import (
	"log/slog"

	"golang.org/x/sys/unix"

	"reelcast/internal/logging"
)

// lowSpaceBytes is the free-space floor below which startup warns.
const lowSpaceBytes = 5 << 30

func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

func logFreeSpace(logger *slog.Logger, root string) {
	free, err := freeBytes(root)
	if err != nil {
		logger.Debug("free space check skipped", logging.String("path", root), logging.Error(err))
		return
	}
	if free < lowSpaceBytes {
		logging.WarnWithContext(logger, "low free space under root directory", "low_disk_space",
			logging.String("path", root),
			logging.Int64("free_bytes", int64(free)),
			logging.String(logging.FieldErrorHint, "free space or move paths.root_dir"),
			logging.String(logging.FieldImpact, "downloads and renders may fail mid-stage"),
		)
		return
	}
	logger.Info("root directory free space", logging.String("path", root), logging.Int64("free_bytes", int64(free)))
}
