package worker

import (
	"context"
	"errors"
	"testing"

	"tutordash/internal/amqp"
	"tutordash/internal/snapshot"
)

type fakeReloader struct {
	switched bool
	err      error
	calls    int
}

func (f *fakeReloader) Reload(ctx context.Context) (bool, error) {
	f.calls++
	return f.switched, f.err
}

func TestReloadHandler(t *testing.T) {
	msg := &amqp.SnapshotRefreshed{EventID: "e1", SnapshotID: "snap-9", Source: "sheets:Daten!A1:H", Sessions: 12}

	tests := []struct {
		name       string
		reloader   *fakeReloader
		wantPurges int
		wantErr    error
	}{
		{name: "newer snapshot purges cache", reloader: &fakeReloader{switched: true}, wantPurges: 1},
		{name: "already current", reloader: &fakeReloader{switched: false}, wantPurges: 0},
		{name: "not stored yet", reloader: &fakeReloader{err: snapshot.ErrNoSnapshot}, wantErr: snapshot.ErrNoSnapshot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			purges := 0
			handle := ReloadHandler(tt.reloader, func() { purges++ }, nil)

			err := handle(context.Background(), msg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if purges != tt.wantPurges {
				t.Errorf("purges = %d, want %d", purges, tt.wantPurges)
			}
			if tt.reloader.calls != 1 {
				t.Errorf("Reload called %d times", tt.reloader.calls)
			}
		})
	}
}

func TestReloadHandler_NilPurge(t *testing.T) {
	handle := ReloadHandler(&fakeReloader{switched: true}, nil, nil)
	if err := handle(context.Background(), &amqp.SnapshotRefreshed{SnapshotID: "s"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
