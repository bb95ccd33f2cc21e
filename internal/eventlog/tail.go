package eventlog

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/spf13/afero"
)

// fileIdentity distinguishes a file from a same-named replacement (write by
// rename, log rotation) on POSIX systems, spec §4.4 step 3. It is the
// (device, inode) pair; on filesystems or afero backends that don't expose
// one (e.g. afero.MemMapFs in tests) it is the zero value, and the tail
// reader falls back to the size-shrank check alone (step 2) to detect a
// reset.
type fileIdentity struct {
	dev uint64
	ino uint64
}

func identityOf(fi os.FileInfo) fileIdentity {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return fileIdentity{dev: uint64(st.Dev), ino: st.Ino}
	}
	return fileIdentity{}
}

// fileState is the per-file cursor state the tail reader remembers between
// polls, spec §4.4: "(inode_or_id, size, cursor)".
type fileState struct {
	identity fileIdentity
	size     int64
	cursor   int64
	pending  []byte // trailing partial line carried to the next read
}

// TailReader tails one or more append-only *.jsonl files, handing complete
// lines to ParseLine and tracking a byte cursor per file so only newly
// appended bytes are re-read (spec §4.4, C4).
type TailReader struct {
	fs afero.Fs

	mu             sync.Mutex
	files          map[string]*fileState
	malformedLines uint64
}

// NewTailReader creates a TailReader backed by fs. Production code passes
// afero.NewOsFs(); tests pass afero.NewMemMapFs() so the round-trip and
// truncation-recovery properties in spec §8 run with no real filesystem.
func NewTailReader(fs afero.Fs) *TailReader {
	return &TailReader{
		fs:    fs,
		files: make(map[string]*fileState),
	}
}

// MalformedLines returns the running count of lines dropped for failing to
// parse, spec §4.2's "malformed_lines metric".
func (r *TailReader) MalformedLines() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.malformedLines
}

// Poll reads any bytes appended to path since the last Poll (or from the
// start, on the first call) and returns the Events parsed from the complete
// lines found. It implements spec §4.4 steps 1-5 verbatim:
//
//  1. stat; missing/unreadable file drops the cursor
//  2. size < cursor (truncation) resets cursor to 0
//  3. identity change (rotation) resets cursor to 0
//  4. read [cursor, size), split on '\n', feed complete lines to ParseLine,
//     retain any trailing partial line
//  5. advance cursor by the bytes consumed into complete lines
func (r *TailReader) Poll(path string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fi, err := r.fs.Stat(path)
	if err != nil {
		delete(r.files, path)
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	st := r.files[path]
	id := identityOf(fi)
	size := fi.Size()

	if st == nil {
		st = &fileState{identity: id}
		r.files[path] = st
	} else {
		if size < st.cursor {
			st.cursor = 0
			st.pending = nil
		}
		if id != (fileIdentity{}) && id != st.identity {
			st.cursor = 0
			st.pending = nil
			st.identity = id
		}
	}
	st.size = size

	if size == st.cursor {
		return nil, nil
	}

	f, err := r.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(st.cursor, io.SeekStart); err != nil {
		return nil, err
	}

	toRead := size - st.cursor
	buf := make([]byte, toRead)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	buf = buf[:n]

	// combined's first byte sits at this offset in the file: the bytes
	// carried over in st.pending came from just before the old cursor.
	combinedStart := st.cursor - int64(len(st.pending))
	combined := append(st.pending, buf...)

	var completeLines, trailing []byte
	if lastNewline := bytes.LastIndexByte(combined, '\n'); lastNewline >= 0 {
		completeLines = combined[:lastNewline+1]
		trailing = combined[lastNewline+1:]
	} else {
		trailing = combined
	}

	var events []Event
	lineOffset := combinedStart
	sc := bufio.NewScanner(bytes.NewReader(completeLines))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		ev, perr := ParseLine(line, lineOffset)
		if perr != nil {
			r.malformedLines++
		} else {
			events = append(events, ev)
		}
		lineOffset += int64(len(line)) + 1 // +1 for the newline
	}

	st.pending = append([]byte(nil), trailing...)
	st.cursor = combinedStart + int64(len(completeLines))

	return events, nil
}

// StartupScan performs the one-time pass over every existing *.jsonl file in
// dirs with cursor = 0 (spec §4.4: "the dashboard reflects history up to
// launch time"), then merges every file's backlog into a single timeline
// ordered by timestamp before returning it.
//
// Each file's own Poll result is already chronological (C2 only ever
// appends), but the files themselves are read one at a time, in whatever
// order os.ReadDir happens to list them. Handing that per-file-concatenated
// slice straight to dashboard.Store.ApplyEvent would apply file A's entire
// backlog — including its latest timestamp — before file B's earlier
// events are ever seen, and ApplyEvent's monotonicity gate would then
// discard them as stale. Spec §8's merge property ("same final
// AgentRuntime map regardless of the order in which event files are read,
// provided per-file order is preserved") requires the backlog to be merged
// across files by timestamp first, so StartupScan's caller only ever feeds
// ApplyEvent a single already-ordered stream. The merge only has files'
// relative order to fall back on for a timestamp tie or a pair of untimed
// events; true cross-file ties are not ordered by the spec and are left to
// whatever order they were read in.
func (r *TailReader) StartupScan(dirs []string) ([]Event, error) {
	var perFile [][]Event
	for _, dir := range dirs {
		entries, err := afero.ReadDir(r.fs, dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return mergeEventStreams(perFile), err
		}
		for _, entry := range entries {
			if entry.IsDir() || !hasJSONLSuffix(entry.Name()) {
				continue
			}
			path := dir + string(os.PathSeparator) + entry.Name()
			evs, err := r.Poll(path)
			if err != nil {
				return mergeEventStreams(perFile), err
			}
			if len(evs) > 0 {
				perFile = append(perFile, evs)
			}
		}
	}
	return mergeEventStreams(perFile), nil
}

// mergeEventStreams performs a k-way merge of streams, each of which is
// already ordered chronologically within itself, into one global timeline.
// Untimed events (HasTimestamp == false) sort after every timed event, the
// same rule dashboard.Store's eventKey applies to a single stream.
func mergeEventStreams(streams [][]Event) []Event {
	type cursor struct {
		stream []Event
		pos    int
	}
	cursors := make([]*cursor, 0, len(streams))
	total := 0
	for _, s := range streams {
		if len(s) == 0 {
			continue
		}
		cursors = append(cursors, &cursor{stream: s})
		total += len(s)
	}

	merged := make([]Event, 0, total)
	for len(cursors) > 0 {
		best := 0
		for i := 1; i < len(cursors); i++ {
			if eventLess(cursors[i].stream[cursors[i].pos], cursors[best].stream[cursors[best].pos]) {
				best = i
			}
		}
		c := cursors[best]
		merged = append(merged, c.stream[c.pos])
		c.pos++
		if c.pos == len(c.stream) {
			cursors = append(cursors[:best], cursors[best+1:]...)
		}
	}
	return merged
}

// eventLess orders two events from different files for the startup merge:
// by timestamp, with untimed events sorting last. It deliberately ignores
// SourceOffset, which is only comparable within a single file.
func eventLess(a, b Event) bool {
	if a.HasTimestamp != b.HasTimestamp {
		return a.HasTimestamp
	}
	if a.HasTimestamp {
		return a.Timestamp.Before(b.Timestamp)
	}
	return false
}

func hasJSONLSuffix(name string) bool {
	const suffix = ".jsonl"
	return len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix
}

// Forget drops the cursor for path, e.g. once its parent directory is no
// longer watched.
func (r *TailReader) Forget(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, path)
}
