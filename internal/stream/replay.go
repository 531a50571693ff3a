package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/normalizer"
	"github.com/potooio/sentinel/internal/types"
	"github.com/potooio/sentinel/internal/util"
)

// ErrNoReplayData is returned when a replay directory holds none of the
// dataset files.
var ErrNoReplayData = errors.New("no replay data files found")

// ReplayFile pairs a batch file name with the dataset it carries.
type ReplayFile struct {
	Name    string
	Dataset types.DatasetKind
}

// ReplayFiles lists the batch files read by LoadReplay, in read order.
var ReplayFiles = []ReplayFile{
	{"pos_transactions.jsonl", types.DatasetPOS},
	{"rfid_readings.jsonl", types.DatasetRFID},
	{"queue_monitoring.jsonl", types.DatasetQueue},
	{"product_recognition.jsonl", types.DatasetRecognition},
	{"inventory_snapshots.jsonl", types.DatasetInventory},
}

// LoadReplay reads every dataset file in dir and returns the envelopes
// ordered by timestamp. The sort is stable, so equal timestamps keep file
// order, and envelopes with unparseable timestamps come first so the
// normalizer rejects them before any valid record. Malformed and
// oversized lines are skipped with a warning; missing files are skipped.
func LoadReplay(dir string, logger *zap.Logger) ([]normalizer.Envelope, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("replay")

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("replay directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("replay path %s is not a directory", dir)
	}

	var all []normalizer.Envelope
	found := 0
	for _, rf := range ReplayFiles {
		path := filepath.Join(dir, rf.Name)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Replay file not present", zap.String("file", rf.Name))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", rf.Name, err)
		}
		found++
		envs, err := readReplayFile(f, rf, logger)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rf.Name, err)
		}
		logger.Info("Loaded replay file",
			zap.String("file", rf.Name),
			zap.Int("records", len(envs)))
		all = append(all, envs...)
	}
	if found == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoReplayData, dir)
	}

	SortEnvelopes(all)
	return all, nil
}

// readReplayFile decodes one JSONL file. A line may be a bare event or a
// full envelope; bare events take the file's dataset.
func readReplayFile(r io.Reader, rf ReplayFile, logger *zap.Logger) ([]normalizer.Envelope, error) {
	var out []normalizer.Envelope
	br := bufio.NewReaderSize(r, 64*1024)
	lineNo := 0
	for {
		line, tooLong, err := readLine(br, maxLineBytes)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		lineNo++
		if tooLong {
			logger.Warn("Skipping oversized replay line",
				zap.String("file", rf.Name),
				zap.Int("line", lineNo),
				zap.Int("limit_bytes", maxLineBytes))
			continue
		}
		if len(line) == 0 {
			continue
		}
		env, err := decodeReplayLine(line, rf.Dataset)
		if err != nil {
			logger.Warn("Skipping malformed replay line",
				zap.String("file", rf.Name),
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		out = append(out, env)
	}
}

// readLine returns the next line without its terminator. A line longer
// than limit is consumed and reported as tooLong with no data.
func readLine(br *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		frag, isPrefix, readErr := br.ReadLine()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) && (len(line) > 0 || tooLong) {
				return line, tooLong, nil
			}
			return line, tooLong, readErr
		}
		if !tooLong {
			if len(line)+len(frag) > limit {
				tooLong, line = true, nil
			} else {
				line = append(line, frag...)
			}
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

func decodeReplayLine(line []byte, dataset types.DatasetKind) (normalizer.Envelope, error) {
	var env normalizer.Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return env, err
	}
	if env.Dataset != "" && env.Event.Timestamp != "" {
		return env, nil
	}
	var ev normalizer.Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return env, err
	}
	return normalizer.Envelope{Dataset: dataset, Event: ev}, nil
}

// SortEnvelopes stable-sorts envelopes by timestamp, unparseable first.
func SortEnvelopes(envs []normalizer.Envelope) {
	keys := make([]time.Time, len(envs))
	for i, e := range envs {
		if ts, err := util.ParseTimestamp(e.Event.Timestamp); err == nil {
			keys[i] = ts
		}
	}
	idx := make([]int, len(envs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].Before(keys[idx[b]])
	})
	sorted := make([]normalizer.Envelope, len(envs))
	for i, j := range idx {
		sorted[i] = envs[j]
	}
	copy(envs, sorted)
}
