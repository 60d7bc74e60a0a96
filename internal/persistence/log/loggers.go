package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/samber/oops"

	"opendoors.ai/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

// Stream appends JSON lines to one zstd file per UTC hour. Every open starts a
// new zstd frame, so an hour reopened after a restart is appended to cleanly.
type Stream struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func NewStream(dir, prefix string) *Stream {
	return &Stream{dir: dir, prefix: prefix, now: time.Now}
}

func (s *Stream) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour := s.now().UTC().Format(hourLayout)
	if hour != s.hour {
		if err := s.openLocked(hour); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return oops.Code("AUDIT_ENCODE_FAILED").Wrap(err)
	}
	b = append(b, '\n')
	if _, err := s.buf.Write(b); err != nil {
		return oops.With("stream", s.prefix, "hour", hour).Wrap(err)
	}
	return s.buf.Flush()
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Stream) openLocked(hour string) error {
	if err := s.closeLocked(); err != nil {
		return err
	}
	path := s.path(hour)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return oops.With("path", path).Wrap(err)
	}
	s.f, s.enc, s.hour = f, enc, hour
	s.buf = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (s *Stream) closeLocked() error {
	if s.f == nil {
		return nil
	}
	_ = s.buf.Flush()
	err := s.enc.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	s.f, s.enc, s.buf, s.hour = nil, nil, nil, ""
	return err
}

func (s *Stream) path(hour string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.jsonl.zst", s.prefix, hour))
}

// IsDoorAction reports whether an audit action changes a secure door.
func IsDoorAction(action string) bool { return strings.HasPrefix(action, "DOOR_") }

// AuditLogger writes the full audit stream under <world>/audit and copies
// every door change into a separate doors ledger next to it.
type AuditLogger struct {
	all   *Stream
	doors *Stream
}

func NewAuditLogger(worldDir string) *AuditLogger {
	dir := filepath.Join(worldDir, "audit")
	return &AuditLogger{all: NewStream(dir, "audit"), doors: NewStream(dir, "doors")}
}

func (l *AuditLogger) WriteAudit(e world.AuditEntry) error {
	if err := l.all.Write(e); err != nil {
		return err
	}
	if !IsDoorAction(e.Action) {
		return nil
	}
	return l.doors.Write(e)
}

func (l *AuditLogger) Close() error {
	return errors.Join(l.all.Close(), l.doors.Close())
}

// DoorHistory returns the ledger entries for the door at pos, oldest first.
func DoorHistory(worldDir string, pos [3]int) ([]world.AuditEntry, error) {
	files, err := filepath.Glob(filepath.Join(worldDir, "audit", "doors-*.jsonl.zst"))
	if err != nil {
		return nil, oops.Wrap(err)
	}
	// The hour layout sorts lexically.
	sort.Strings(files)

	var out []world.AuditEntry
	for _, path := range files {
		err := readEntries(path, func(e world.AuditEntry) {
			if e.Pos == pos {
				out = append(out, e)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readEntries(path string, fn func(world.AuditEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var e world.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return oops.Code("AUDIT_DECODE_FAILED").With("path", path).Wrap(err)
		}
		fn(e)
	}
	if err := sc.Err(); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	return nil
}
