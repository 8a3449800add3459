// Package rangelog is the append-only list of formatted ranges owned by one
// session.
package rangelog

import (
	"strings"
	"sync"

	"mtsched/internal/model"
)

// Log is an ordered, append-only sequence of records. Insertion order is
// display order; there is no dedup, deletion or edit.
type Log struct {
	mu      sync.RWMutex
	records []model.RangeRecord
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append adds rec at the end and returns its position.
func (l *Log) Append(rec model.RangeRecord) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return len(l.records) - 1
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of the records in insertion order.
func (l *Log) Records() []model.RangeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.RangeRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Text is the accumulated buffer shown in the text area: every record's text
// followed by a newline.
func (l *Log) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	for _, r := range l.records {
		b.WriteString(r.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
