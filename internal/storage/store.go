// Package storage keeps a record of protocol runs on disk: one directory
// per run holding metadata.json and the axis trace as trace.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/otbridge/internal/hardware"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Protocol  string             `json:"protocol"`
	Timestamp time.Time          `json:"timestamp"`
	Backend   string             `json:"backend"`
	Preset    string             `json:"preset,omitempty"`
	Steps     int                `json:"steps"`
	Elapsed   float64            `json:"elapsed"`
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
	Samples   int                `json:"samples"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Save writes a run. An empty meta.ID is filled with a new UUID and a zero
// Timestamp with the current time; the ID is returned.
func (s *Store) Save(meta RunMetadata, trace *Trace) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if trace != nil {
		meta.Samples = trace.Len()
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if trace == nil {
		return meta.ID, nil
	}

	csvFile, err := os.Create(filepath.Join(runDir, "trace.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := trace.WriteCSV(csvFile); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns every stored run, newest first. Directories without
// readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrace reads a run's axis trace. A run saved without one has an
// empty trace.
func (s *Store) LoadTrace(runID string) (*Trace, error) {
	if _, err := s.Load(runID); err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, "trace.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Trace{}, nil
		}
		return nil, err
	}
	defer file.Close()

	return ReadCSV(file)
}

// ReadCSV parses a trace written by WriteCSV.
func ReadCSV(r io.Reader) (*Trace, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 1 + hardware.NumAxes

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	tr := &Trace{}
	if len(records) < 2 {
		return tr, nil
	}
	for i, record := range records[1:] {
		var s hardware.Sample
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("trace row %d: %w", i+1, err)
		}
		s.Elapsed = t
		for ax := 0; ax < hardware.NumAxes; ax++ {
			v, err := strconv.ParseFloat(record[1+ax], 64)
			if err != nil {
				return nil, fmt.Errorf("trace row %d: %w", i+1, err)
			}
			s.Positions[ax] = v
		}
		tr.Samples = append(tr.Samples, s)
	}
	return tr, nil
}
