package planfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/taskdash/taskdash/internal/dashboard"
	taskdasherrors "github.com/taskdash/taskdash/internal/errors"
)

// Writer implements set_status (spec §4.6, C6): it splices a new status-tag
// literal into the byte range C1 captured for a task, and writes the result
// atomically (temp file in the same directory, fsync, rename over the
// original).
type Writer struct {
	fs afero.Fs
}

// NewWriter creates a Writer backed by fs. Production code passes
// afero.NewOsFs(); tests pass afero.NewMemMapFs() for the byte-diff
// round-trip property in spec §8.
func NewWriter(fs afero.Fs) *Writer {
	return &Writer{fs: fs}
}

// SetStatus rewrites taskID's status tag to newStatus in the plan at
// plan.Path, using plan's captured RawText and the task's StatusTagRange.
// It returns *errors.WriteError with Kind NotFound, Stale, or IoError per
// spec §4.6/§7. Every byte of plan.RawText outside the tag range is
// preserved exactly.
func (w *Writer) SetStatus(plan *dashboard.PlanFile, taskID string, newStatus dashboard.Status) error {
	task := plan.TaskByID(taskID)
	if task == nil {
		return taskdasherrors.NewWriteError(taskdasherrors.WriteErrKindNotFound, taskID, nil)
	}

	onDisk, err := afero.ReadFile(w.fs, plan.Path)
	if err != nil {
		return taskdasherrors.NewWriteError(taskdasherrors.WriteErrKindIO, taskID, err)
	}

	rng := task.StatusTag
	if rng.End > len(onDisk) || rng.Start < 0 || rng.Start > rng.End {
		return taskdasherrors.NewWriteError(taskdasherrors.WriteErrKindStale, taskID,
			fmt.Errorf("captured range [%d:%d) is out of bounds for a %d-byte file", rng.Start, rng.End, len(onDisk)))
	}
	if string(onDisk[rng.Start:rng.End]) != string(plan.RawText[rng.Start:rng.End]) {
		return taskdasherrors.NewWriteError(taskdasherrors.WriteErrKindStale, taskID,
			fmt.Errorf("on-disk bytes at [%d:%d) no longer match the last parse", rng.Start, rng.End))
	}

	newTag := newStatus.ShortTag()
	out := make([]byte, 0, len(onDisk)-(rng.End-rng.Start)+len(newTag))
	out = append(out, onDisk[:rng.Start]...)
	out = append(out, newTag...)
	out = append(out, onDisk[rng.End:]...)

	if err := w.atomicWrite(plan.Path, out); err != nil {
		return taskdasherrors.NewWriteError(taskdasherrors.WriteErrKindIO, taskID, err)
	}

	task.Status = newStatus
	delta := len(newTag) - (rng.End - rng.Start)
	task.StatusTag.End = rng.Start + len(newTag)
	plan.RawText = out
	shiftDownstreamRanges(plan, task.ID, delta, rng.End)

	return nil
}

// shiftDownstreamRanges adjusts every other task's captured StatusTagRange
// by delta when the just-written tag's length changed, so the PlanFile
// stays internally consistent (spec §3 invariant 4) until the next re-parse
// replaces it wholesale.
func shiftDownstreamRanges(plan *dashboard.PlanFile, writtenID string, delta int, afterOffset int) {
	if delta == 0 {
		return
	}
	for _, ph := range plan.Phases {
		for _, t := range ph.Tasks {
			if t.ID == writtenID {
				continue
			}
			if t.StatusTag.Start >= afterOffset {
				t.StatusTag.Start += delta
				t.StatusTag.End += delta
			}
		}
	}
}

// atomicWrite writes data to <path>.tmp in path's directory, fsyncs, and
// renames over path, per spec §4.6: "The writer never creates partial files
// visible to C3."
func (w *Writer) atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, filepath.Base(path)+".tmp")

	f, err := w.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		return err
	}
	return w.fs.Rename(tmp, path)
}
