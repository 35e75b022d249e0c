package postgres

import (
	"reflect"
	"strings"
	"testing"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
)

func TestBuildWhere(t *testing.T) {
	testCases := []struct {
		name      string
		pred      store.Predicate
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "all tickets",
			pred:      store.Predicate{},
			wantWhere: "",
			wantArgs:  []any{},
		},
		{
			name:      "mine",
			pred:      store.Predicate{CreatedBy: "0b7e5f8a-7a4e-4b59-9d25-0a4f0a6d3c11"},
			wantWhere: "WHERE created_by = $1",
			wantArgs:  []any{"0b7e5f8a-7a4e-4b59-9d25-0a4f0a6d3c11"},
		},
		{
			name: "active public feed",
			pred: store.Predicate{
				Visibility: model.VisibilityPublic,
				Statuses:   []model.Status{model.StatusOpen, model.StatusInProgress},
			},
			wantWhere: "WHERE visibility = $1 AND status = ANY($2)",
			wantArgs:  []any{"public", []string{"open", "in_progress"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			where, args := buildWhere(tc.pred)
			if where != tc.wantWhere {
				t.Errorf("where = %q; want %q", where, tc.wantWhere)
			}
			if !reflect.DeepEqual(args, tc.wantArgs) {
				t.Errorf("args = %#v; want %#v", args, tc.wantArgs)
			}
		})
	}
}

func TestOrderBy(t *testing.T) {
	testCases := []struct {
		sort  store.Sort
		first string
	}{
		{store.SortNewest, "ORDER BY created_at DESC"},
		{store.SortFeed, "ORDER BY upvote_count DESC, CASE severity"},
		{store.SortTriage, "ORDER BY CASE severity"},
	}

	for _, tc := range testCases {
		got := orderBy(tc.sort)
		if !strings.HasPrefix(got, tc.first) {
			t.Errorf("orderBy(%d) = %q; want prefix %q", tc.sort, got, tc.first)
		}
		if !strings.HasSuffix(got, "created_at DESC") {
			t.Errorf("orderBy(%d) = %q; created_at must be the final tie-break", tc.sort, got)
		}
	}
}

func TestBuildTicketQueryNumbersArgs(t *testing.T) {
	query, args := buildTicketQuery(store.Predicate{Visibility: model.VisibilityPublic}, store.SortFeed)
	if !strings.Contains(query, "visibility = $1") || len(args) != 1 {
		t.Fatalf("query = %s args = %v", query, args)
	}
	if !strings.Contains(query, "FROM tickets") {
		t.Fatalf("query does not select from tickets: %s", query)
	}
}

func TestValidID(t *testing.T) {
	if validID("not-a-uuid") {
		t.Error("validID accepted a malformed id")
	}
	if !validID("0b7e5f8a-7a4e-4b59-9d25-0a4f0a6d3c11") {
		t.Error("validID rejected a uuid")
	}
}
