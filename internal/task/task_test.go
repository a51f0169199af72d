package task

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDocumentWireFormat(t *testing.T) {
	leased, err := ApplyUpdate(New("task/9", []byte(`{"k":1}`), "q", 3), UpdateRequest{Operation: OpLease, Worker: "w1"})
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	raw, err := json.Marshal(leased)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	doc := string(raw)
	for _, want := range []string{
		`"rn":"task/9"`,
		`"status":"running"`,
		`"owner":"w1"`,
		`"typ":"TaskAssignment"`,
		`"errors":[]`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document %s missing %s", doc, want)
		}
	}

	var back Task
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.RN != leased.RN || back.Status != leased.Status || len(back.History) != 1 {
		t.Fatalf("round trip mismatch: %+v", back)
	}
	if !back.Deadline.Equal(leased.Deadline.Time) {
		t.Fatalf("deadline drifted: %v vs %v", back.Deadline, leased.Deadline)
	}
}

func TestTimeOrdersLexicographically(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 59, 59, 990e6, time.UTC)
	prev := At(base).String()
	for i := 1; i < 40; i++ {
		cur := At(base.Add(time.Duration(i) * 7 * time.Millisecond)).String()
		if !(prev < cur) {
			t.Fatalf("wire timestamps out of order: %s >= %s", prev, cur)
		}
		prev = cur
	}
}

func TestTimeAcceptsLegacyPrecision(t *testing.T) {
	var parsed Time
	if err := json.Unmarshal([]byte(`"2026-03-01T10:00:00.123456789Z"`), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 123e6, time.UTC)
	if !parsed.Equal(want) {
		t.Fatalf("parsed = %v, want %v", parsed, want)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := New("task/2", nil, "q", 0)
	leased, _ := ApplyUpdate(orig, UpdateRequest{Operation: OpLease, Worker: "w1"})
	clone := leased.Clone()
	clone.History[0].Worker = "w2"
	*clone.Owner = "w2"
	if leased.History[0].Worker != "w1" || *leased.Owner != "w1" {
		t.Fatalf("clone shares memory with original: %+v", leased)
	}
}
