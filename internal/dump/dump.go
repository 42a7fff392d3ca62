// Package dump implements the optional stream-dump directory
// selection spec.md §6 describes: input packets and output frames are
// mirrored to files under a per-stream directory picked by a
// process-wide, flock-guarded index scan (spec.md §9: "intentionally
// process-wide").
package dump

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// MaxStreamDirs is the ceiling on concurrently numbered stream
// directories under a mount point (spec.md §6: "pick the next unused
// index <= 128; if 128 already exist, steal the oldest-modified one").
const MaxStreamDirs = 128

// lockFileName is the process-wide lock file that serializes
// directory selection across concurrent transcoder processes sharing
// the same mount point.
const lockFileName = ".xcoder-dump.lock"

// Dir is one claimed stream-dump directory: a path plus a
// monotonically increasing packet/frame sequence number for the
// pkt-NNNN.bin / frm-NNNN.bin naming convention.
type Dir struct {
	Path string

	pktSeq int
	frmSeq int
}

// Select claims a stream directory under root (e.g. "/nvme0"),
// following spec.md §6's selection rule, and stamps
// process_session_id.txt with the owning pid, session id, and a
// correlation UUID so concurrent directories from the same pid remain
// distinguishable. The whole selection is done under an exclusive
// flock on root/lockFileName so two processes racing for the same
// mount point never pick the same index.
func Select(root string, sessionID uint16) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("dump: mkdir root %s: %w", root, err)
	}

	lockPath := filepath.Join(root, lockFileName)
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("dump: open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		return nil, fmt.Errorf("dump: flock: %w", err)
	}
	defer unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)

	path, err := selectPathLocked(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("dump: mkdir stream dir %s: %w", path, err)
	}

	marker := fmt.Sprintf("pid=%d session_id=%d correlation_id=%s\n", os.Getpid(), sessionID, uuid.New().String())
	if err := os.WriteFile(filepath.Join(path, "process_session_id.txt"), []byte(marker), 0o644); err != nil {
		return nil, fmt.Errorf("dump: write process_session_id.txt: %w", err)
	}

	return &Dir{Path: path}, nil
}

func selectPathLocked(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("dump: read root %s: %w", root, err)
	}

	used := make(map[int]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(e.Name(), "stream%03d", &idx); err != nil {
			continue
		}
		used[idx] = true
	}

	for idx := 0; idx < MaxStreamDirs; idx++ {
		if !used[idx] {
			return filepath.Join(root, fmt.Sprintf("stream%03d", idx)), nil
		}
	}

	return stealOldestLocked(root, entries)
}

// stealOldestLocked picks the least-recently-modified stream directory
// to reuse once all MaxStreamDirs slots are occupied.
func stealOldestLocked(root string, entries []os.DirEntry) (string, error) {
	type candidate struct {
		name    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(e.Name(), "stream%03d", &idx); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{name: e.Name(), modTime: info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("dump: no stream directories found under %s to steal", root)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.Before(candidates[j].modTime) })

	path := filepath.Join(root, candidates[0].name)
	if err := os.RemoveAll(path); err != nil {
		return "", fmt.Errorf("dump: remove oldest stream dir %s: %w", path, err)
	}
	return path, nil
}

// NextPacketPath returns the next pkt-NNNN.bin path in this directory
// and advances the sequence counter.
func (d *Dir) NextPacketPath() string {
	d.pktSeq++
	return filepath.Join(d.Path, fmt.Sprintf("pkt-%04d.bin", d.pktSeq))
}

// NextFramePath returns the next frm-NNNN.bin path in this directory
// and advances the sequence counter.
func (d *Dir) NextFramePath() string {
	d.frmSeq++
	return filepath.Join(d.Path, fmt.Sprintf("frm-%04d.bin", d.frmSeq))
}

// WritePacket mirrors one packet's bytes to the next pkt-NNNN.bin file.
func (d *Dir) WritePacket(data []byte) error {
	return os.WriteFile(d.NextPacketPath(), data, 0o644)
}

// WriteFrame mirrors one frame's bytes to the next frm-NNNN.bin file.
func (d *Dir) WriteFrame(data []byte) error {
	return os.WriteFile(d.NextFramePath(), data, 0o644)
}
