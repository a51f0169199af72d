package store

import (
	"errors"
	"testing"

	"github.com/kindredgroup/scylla/internal/task"
)

func TestSingleRowHelpers(t *testing.T) {
	one := []task.Task{task.New("task/1", nil, "q", 0)}

	if _, err := SingleFromInsert(nil, "task/1"); err == nil {
		t.Fatal("empty insert result should be a duplicate")
	} else {
		var dup *DuplicateTaskError
		if !errors.As(err, &dup) || dup.RN != "task/1" {
			t.Fatalf("err = %v, want DuplicateTask(task/1)", err)
		}
	}
	if got, err := SingleFromInsert(one, "task/1"); err != nil || got.RN != "task/1" {
		t.Fatalf("insert = %v, %v", got, err)
	}

	for name, fn := range map[string]func([]task.Task, string) (task.Task, error){
		"update": SingleFromUpdate,
		"query":  SingleFromQuery,
	} {
		if _, err := fn(nil, "task/2"); err == nil {
			t.Fatalf("%s: empty result should be NoTaskFound", name)
		} else {
			var missing *NoTaskFoundError
			if !errors.As(err, &missing) || missing.RN != "task/2" {
				t.Fatalf("%s: err = %v, want NoTaskFound(task/2)", name, err)
			}
		}
		if got, err := fn(one, "task/1"); err != nil || got.RN != "task/1" {
			t.Fatalf("%s = %v, %v", name, got, err)
		}
	}
}

func TestSingleRowHelpersPanicOnMultipleRows(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("two rows for one rn must panic")
		}
	}()
	two := []task.Task{task.New("task/1", nil, "q", 0), task.New("task/1", nil, "q", 0)}
	_, _ = SingleFromInsert(two, "task/1")
}

func TestPrepareQuery(t *testing.T) {
	got := PrepareQuery(task.Filter{})
	want := QueryParams{Status: "%", Queue: "%", Worker: "%", Limit: task.DefaultQueryLimit}
	if got != want {
		t.Fatalf("defaults = %+v, want %+v", got, want)
	}

	got = PrepareQuery(task.Filter{Status: task.StatusCancelled, Queue: "abc", Worker: "w", Limit: 20})
	want = QueryParams{Status: "cancelled", Queue: "abc", Worker: "w", Limit: 20}
	if got != want {
		t.Fatalf("explicit = %+v, want %+v", got, want)
	}
}
