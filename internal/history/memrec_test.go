package history

import (
	"context"
	"testing"
	"time"
)

func TestRecordAndListNewestFirst(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()
	base := time.Now()

	for i, res := range []Result{ResultLoss, ResultWin, ResultDraw} {
		err := rec.Record(ctx, MatchResult{
			UserID:       "u1",
			Result:       res,
			OpponentName: "opp",
			MovesCount:   i,
			PlayedAt:     base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	list, err := rec.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	if list[0].Result != ResultDraw || list[2].Result != ResultLoss {
		t.Fatalf("not newest first: %+v", list)
	}
	if list[0].GameType != GameTypeBaduk {
		t.Fatalf("game type defaulted to %q", list[0].GameType)
	}
}

func TestListUnknownUserIsEmpty(t *testing.T) {
	rec := NewMemoryRecorder()
	list, err := rec.ListByUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("len = %d, want 0", len(list))
	}
}
