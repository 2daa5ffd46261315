package audit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"andycoin/andycoin"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FilePrefix names the daily audit files: audit.2026-10-19.jsonl
const FilePrefix = "audit"

// FileSink appends events as JSON lines to a daily file. Record never blocks: when the
// buffer is full the event is dropped and counted.
type FileSink struct {
	dir     string
	events  chan Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	dropped atomic.Uint64
	written atomic.Uint64
}

func NewFileSink(dir string, buffer int) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if buffer < 1 {
		buffer = 1
	}
	f := &FileSink{
		dir:     dir,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go f.run()
	return f, nil
}

func FileName(dir string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.jsonl", FilePrefix, day.UTC().Format("2006-01-02")))
}

func (f *FileSink) Record(e Event) {
	select {
	case <-f.done:
		f.dropped.Add(1)
		return
	default:
	}
	select {
	case f.events <- e:
	default:
		f.dropped.Add(1)
	}
}

func (f *FileSink) Dropped() uint64 {
	return f.dropped.Load()
}

func (f *FileSink) Written() uint64 {
	return f.written.Load()
}

// Close flushes whatever is buffered and stops the writer.
func (f *FileSink) Close() {
	f.once.Do(func() {
		close(f.done)
	})
	<-f.stopped
}

func (f *FileSink) run() {
	defer close(f.stopped)
	for {
		select {
		case e := <-f.events:
			f.write(e)
		case <-f.done:
			for {
				select {
				case e := <-f.events:
					f.write(e)
				default:
					return
				}
			}
		}
	}
}

func (f *FileSink) write(e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		andycoin.LogCLI(err.Error(), 2)
		f.dropped.Add(1)
		return
	}
	file, err := os.OpenFile(FileName(f.dir, e.Time), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		andycoin.LogCLI(err.Error(), 2)
		f.dropped.Add(1)
		return
	}
	w := bufio.NewWriter(file)
	_, _ = w.Write(b)
	_ = w.WriteByte('\n')
	err = w.Flush()
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		andycoin.LogCLI(err.Error(), 2)
		f.dropped.Add(1)
		return
	}
	f.written.Add(1)
}

// ReadFile parses one JSON-lines audit file, skipping lines that do not decode.
func ReadFile(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var out []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}

func uintString(u uint64) string {
	return strconv.FormatUint(u, 10)
}
