// Package sessionlog keeps the append-only history of completed sessions.
package sessionlog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/kilianp07/chargetrack/core/model"
)

// Query filters history reads. Zero values match everything.
type Query struct {
	Start  time.Time
	End    time.Time
	UserID string
	Limit  int
}

// Store is the session history backend.
type Store interface {
	Append(ctx context.Context, sess model.Session) error
	Query(ctx context.Context, q Query) ([]model.Session, error)
	Close() error
}

// JSONLStore appends completed sessions to a JSONL file, one session per
// line. The file is reopened per operation so external log shippers can
// rotate it safely.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) Append(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(sess)
}

// Query returns matching sessions in file order. Malformed lines are
// skipped. A positive Limit keeps only the most recent matches.
func (s *JSONLStore) Query(_ context.Context, q Query) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var res []model.Session
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var sess model.Session
		if err := json.Unmarshal(scanner.Bytes(), &sess); err != nil {
			continue
		}
		if !q.Start.IsZero() && sess.StartedAt.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && sess.StartedAt.After(q.End) {
			continue
		}
		if q.UserID != "" && sess.UserID != q.UserID {
			continue
		}
		res = append(res, sess)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[len(res)-q.Limit:]
	}
	return res, nil
}

func (s *JSONLStore) Close() error { return nil }
