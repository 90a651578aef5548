package handlers

import (
	"context"
	"net/http"
	"testing"

	"cadventory/internal/database"
)

func TestModelTagLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	steps := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"add", "POST", "/api/models/101/tags", `{"tag":"armor"}`, http.StatusOK},
		{"add twice", "POST", "/api/models/101/tags", `{"tag":"armor"}`, http.StatusOK},
		{"add empty", "POST", "/api/models/101/tags", `{"tag":"  "}`, http.StatusBadRequest},
		{"add to missing model", "POST", "/api/models/999/tags", `{"tag":"armor"}`, http.StatusNotFound},
		{"replace", "PUT", "/api/models/101/tags", `{"tags":["tracked","armor","desert"]}`, http.StatusOK},
		{"remove", "DELETE", "/api/models/101/tags/desert", "", http.StatusOK},
		{"remove missing", "DELETE", "/api/models/101/tags/desert", "", http.StatusNotFound},
		{"tag other model", "POST", "/api/models/202/tags", `{"tag":"armor"}`, http.StatusOK},
	}
	for _, st := range steps {
		rec := s.do(t, st.method, st.path, st.body)
		if rec.Code != st.wantStatus {
			t.Fatalf("%s: status = %d, want %d: %s", st.name, rec.Code, st.wantStatus, rec.Body.String())
		}
	}

	tags := decode[[]string](t, s.do(t, "GET", "/api/models/101/tags", ""))
	if len(tags) != 2 || tags[0] != "armor" || tags[1] != "tracked" {
		t.Errorf("tags of 101 = %v, want [armor tracked]", tags)
	}

	all := decode[[]database.TagCount](t, s.do(t, "GET", "/api/tags", ""))
	counts := map[string]int{}
	for _, tc := range all {
		counts[tc.Name] = tc.Count
	}
	if counts["armor"] != 2 || counts["tracked"] != 1 || len(counts) != 2 {
		t.Errorf("tag counts = %v", counts)
	}

	models := decode[[]database.Model](t, s.do(t, "GET", "/api/tags/tracked/models", ""))
	if len(models) != 1 || models[0].ID != tankID {
		t.Errorf("models tagged tracked = %+v", models)
	}

	hits := decode[SearchResponse](t, s.do(t, "GET", "/api/search?q=tracked", ""))
	if len(hits.Results) != 1 || hits.Results[0].Model.ID != tankID {
		t.Errorf("search by new tag = %+v", hits.Results)
	}
}

func TestGetModelTags_Empty(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, "GET", "/api/models/202/tags", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Errorf("tags = %d %q, want empty array", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, "GET", "/api/tags", ""); rec.Body.String() != "[]\n" {
		t.Errorf("all tags = %q, want empty array", rec.Body.String())
	}
}

func TestUpdateSelection(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantSelected map[int64]bool
		wantIncluded map[int64]bool
	}{
		{
			name:         "select both",
			body:         `{"ids":[101,202],"value":true}`,
			wantStatus:   http.StatusOK,
			wantSelected: map[int64]bool{tankID: true, heliID: true},
			wantIncluded: map[int64]bool{tankID: true, heliID: true},
		},
		{
			name:         "exclude one",
			body:         `{"ids":[202],"field":"included","value":false}`,
			wantStatus:   http.StatusOK,
			wantSelected: map[int64]bool{tankID: true, heliID: true},
			wantIncluded: map[int64]bool{tankID: true, heliID: false},
		},
		{
			name:         "unknown id rolls back",
			body:         `{"ids":[101,999],"value":false}`,
			wantStatus:   http.StatusNotFound,
			wantSelected: map[int64]bool{tankID: true, heliID: true},
			wantIncluded: map[int64]bool{tankID: true, heliID: false},
		},
		{
			name:       "unknown field",
			body:       `{"ids":[101],"field":"starred","value":true}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no ids",
			body:       `{"ids":[],"value":true}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, "POST", "/api/selection", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			for id, want := range tt.wantSelected {
				m, err := s.db.GetModel(ctx, id)
				if err != nil {
					t.Fatal(err)
				}
				if m.IsSelected != want {
					t.Errorf("model %d selected = %v, want %v", id, m.IsSelected, want)
				}
				if m.IsIncluded != tt.wantIncluded[id] {
					t.Errorf("model %d included = %v, want %v", id, m.IsIncluded, tt.wantIncluded[id])
				}
			}
		})
	}
}
