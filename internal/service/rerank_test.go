package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minqi/snaplore/internal/domain"
)

func makeCandidates(titles ...string) []domain.Screenshot {
	shots := make([]domain.Screenshot, len(titles))
	for i, title := range titles {
		shots[i] = domain.Screenshot{ID: fmt.Sprintf("shot-%d", i), AITitle: title}
	}
	return shots
}

// chatStub serves a fixed assistant message in the chat completions shape.
func chatStub(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRerankBackfillsSkippedCandidates(t *testing.T) {
	// candidate 2 is never scored by the model
	srv := chatStub(t, "0: 0.9\n1: 0.2\n3: 0.8")
	reranker := NewReranker(&RerankerConfig{Model: "m", BaseURL: srv.URL})
	candidates := makeCandidates("a", "b", "c", "d")

	results := reranker.Rerank(context.Background(), "query", candidates, 4)
	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}

	// scored candidates best first, then the skipped one at the backfill score
	wantIDs := []string{"shot-0", "shot-3", "shot-1", "shot-2"}
	wantScores := []float64{0.9, 0.8, 0.2, backfillScore}
	for i, res := range results {
		if res.ID != wantIDs[i] {
			t.Errorf("results[%d].ID = %q, want %q", i, res.ID, wantIDs[i])
		}
		if res.Score != wantScores[i] {
			t.Errorf("results[%d].Score = %v, want %v", i, res.Score, wantScores[i])
		}
	}
}

func TestRerankReturnsExactTopK(t *testing.T) {
	srv := chatStub(t, "0: 0.9\n1: 0.2\n3: 0.8")
	reranker := NewReranker(&RerankerConfig{Model: "m", BaseURL: srv.URL})
	candidates := makeCandidates("a", "b", "c", "d")

	results := reranker.Rerank(context.Background(), "query", candidates, 2)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].ID != "shot-0" || results[1].ID != "shot-3" {
		t.Errorf("top 2 = [%s %s], want [shot-0 shot-3]", results[0].ID, results[1].ID)
	}
}

func TestRerankUnparseableResponseKeepsVectorOrder(t *testing.T) {
	srv := chatStub(t, "The first screenshot looks most relevant.")
	reranker := NewReranker(&RerankerConfig{Model: "m", BaseURL: srv.URL})
	candidates := makeCandidates("a", "b", "c")

	results := reranker.Rerank(context.Background(), "query", candidates, 3)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for i, res := range results {
		if res.ID != candidates[i].ID {
			t.Errorf("results[%d].ID = %q, want %q", i, res.ID, candidates[i].ID)
		}
		if res.Score != neutralScore {
			t.Errorf("results[%d].Score = %v, want %v", i, res.Score, neutralScore)
		}
	}
}

func TestParseRankings(t *testing.T) {
	response := `2: 0.95
0: 0.40
1: 0.70
not a ranking line
7: 0.99
abc: 0.5`

	rankings := parseRankings(response, 3)
	if len(rankings) != 3 {
		t.Fatalf("len(rankings) = %d, want 3", len(rankings))
	}

	// sorted by score descending; index 7 is out of range and dropped
	wantOrder := []int{2, 1, 0}
	wantScores := []float64{0.95, 0.70, 0.40}
	for i, rk := range rankings {
		if rk.index != wantOrder[i] {
			t.Errorf("rankings[%d].index = %d, want %d", i, rk.index, wantOrder[i])
		}
		if rk.score != wantScores[i] {
			t.Errorf("rankings[%d].score = %v, want %v", i, rk.score, wantScores[i])
		}
	}
}

func TestParseRankingsEmpty(t *testing.T) {
	if got := parseRankings("The most relevant screenshot is the second one.", 5); len(got) != 0 {
		t.Errorf("expected no rankings, got %d", len(got))
	}
}

func TestParseRankingLine(t *testing.T) {
	testCases := []struct {
		line      string
		wantIdx   int
		wantScore float64
		ok        bool
	}{
		{"0: 0.9", 0, 0.9, true},
		{"  3 : 0.25 ", 3, 0.25, true},
		{"0: 8.5", 0, 1, true},
		{"1: -2", 1, 0, true},
		{"2: high", 0, 0, false},
		{"no colon here", 0, 0, false},
		{"x: 0.5", 0, 0, false},
	}

	for _, tc := range testCases {
		idx, score, ok := parseRankingLine(tc.line)
		if ok != tc.ok {
			t.Errorf("parseRankingLine(%q) ok = %v, want %v", tc.line, ok, tc.ok)
			continue
		}
		if ok && (idx != tc.wantIdx || score != tc.wantScore) {
			t.Errorf("parseRankingLine(%q) = (%d, %v), want (%d, %v)", tc.line, idx, score, tc.wantIdx, tc.wantScore)
		}
	}
}

func TestNeutralOrder(t *testing.T) {
	candidates := makeCandidates("a", "b", "c")
	results := neutralOrder(candidates, 2)

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for i, res := range results {
		if res.ID != candidates[i].ID {
			t.Errorf("results[%d].ID = %q, want %q", i, res.ID, candidates[i].ID)
		}
		if res.Score != neutralScore {
			t.Errorf("results[%d].Score = %v, want %v", i, res.Score, neutralScore)
		}
	}
}

func TestBuildRerankPromptTruncatesSnippets(t *testing.T) {
	long := strings.Repeat("x", maxSnippetRunes+50)
	candidates := makeCandidates("First", "Second")
	candidates[0].Narrative = long

	prompt := buildRerankPrompt("go talks", candidates)
	if !strings.Contains(prompt, "Screenshot 0:") || !strings.Contains(prompt, "Screenshot 1:") {
		t.Error("prompt missing candidate headers")
	}
	if strings.Contains(prompt, long) {
		t.Error("prompt contains untruncated narrative")
	}
	if !strings.Contains(prompt, strings.Repeat("x", maxSnippetRunes)+"...") {
		t.Error("prompt missing truncated snippet")
	}
}
