package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/pkg/xerrors"
)

type failingSink struct {
	mu       sync.Mutex
	appends  int
	failFrom int // fail every append once this many have succeeded
}

func (s *failingSink) Append(_ context.Context, _ *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appends >= s.failFrom {
		return errors.New("disk full")
	}
	s.appends++
	return nil
}

func TestRecorderAssignsSequentialSeqs(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder("RUN-1", sink, zap.NewNop())
	defer rec.Close()

	for i := 0; i < 5; i++ {
		entry, err := rec.Record(context.Background(), domain.OpMatchAccepted, "74400", domain.SeverityInfo, nil, nil, "")
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if entry.Seq != int64(i+1) {
			t.Errorf("record %d seq = %d, want %d", i, entry.Seq, i+1)
		}
		if entry.RunID != "RUN-1" {
			t.Errorf("entry run id = %s, want RUN-1", entry.RunID)
		}
	}

	entries := sink.Entries()
	if len(entries) != 5 {
		t.Fatalf("sink holds %d entries, want 5", len(entries))
	}
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Errorf("sink entry %d has seq %d, want %d", i, e.Seq, i+1)
		}
	}
	if got := rec.Seq(); got != 5 {
		t.Errorf("Seq() = %d, want 5", got)
	}
}

func TestRecorderConcurrentAppends(t *testing.T) {
	const writers = 8
	const perWriter = 25

	sink := NewMemorySink()
	rec := NewRecorder("RUN-2", sink, zap.NewNop())
	defer rec.Close()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := rec.Record(context.Background(), domain.OpVarianceClassified, "74505", domain.SeverityInfo, nil, i, ""); err != nil {
					t.Errorf("record: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	entries := sink.Entries()
	if len(entries) != writers*perWriter {
		t.Fatalf("sink holds %d entries, want %d", len(entries), writers*perWriter)
	}
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Fatalf("entry %d has seq %d; sequence must be gapless and strictly increasing", i, e.Seq)
		}
	}
}

func TestRecorderDigests(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder("RUN-3", sink, zap.NewNop())
	defer rec.Close()

	type state struct{ N int }

	entry, err := rec.Record(context.Background(), domain.OpBalanceComputed, "74400", domain.SeverityInfo, nil, state{N: 1}, "")
	if err != nil {
		t.Fatal(err)
	}
	if entry.BeforeDigest != "" {
		t.Errorf("nil before state should digest to empty, got %q", entry.BeforeDigest)
	}
	if entry.AfterDigest == "" {
		t.Error("after state should carry a digest")
	}

	again, err := rec.Record(context.Background(), domain.OpBalanceComputed, "74400", domain.SeverityInfo, state{N: 1}, state{N: 2}, "")
	if err != nil {
		t.Fatal(err)
	}
	if again.BeforeDigest != entry.AfterDigest {
		t.Error("identical states should produce identical digests")
	}
	if again.AfterDigest == again.BeforeDigest {
		t.Error("different states should produce different digests")
	}
}

func TestRecorderLatchesWriteFailure(t *testing.T) {
	sink := &failingSink{failFrom: 2}
	rec := NewRecorder("RUN-4", sink, zap.NewNop())
	defer rec.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := rec.Record(ctx, domain.OpMatchAccepted, "74400", domain.SeverityInfo, nil, nil, ""); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	_, err := rec.Record(ctx, domain.OpMatchAccepted, "74400", domain.SeverityInfo, nil, nil, "")
	var werr *xerrors.AuditWriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected AuditWriteError, got %v", err)
	}
	if werr.Seq != 3 {
		t.Errorf("failed seq = %d, want 3", werr.Seq)
	}

	// every later append reports the latched failure without retrying
	_, err2 := rec.Record(ctx, domain.OpRunFinalized, "", domain.SeverityCritical, nil, nil, "")
	if !errors.As(err2, &werr) {
		t.Fatalf("expected latched AuditWriteError, got %v", err2)
	}
	if got := sink.appends; got != 2 {
		t.Errorf("sink saw %d successful appends, want 2", got)
	}
}

func TestRecorderClosed(t *testing.T) {
	rec := NewRecorder("RUN-5", NewMemorySink(), zap.NewNop())
	rec.Close()

	_, err := rec.Record(context.Background(), domain.OpRunStarted, "", domain.SeverityInfo, nil, nil, "")
	if !errors.Is(err, xerrors.ErrRecorderClosed) {
		t.Fatalf("expected ErrRecorderClosed, got %v", err)
	}
}
