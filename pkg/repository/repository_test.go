package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/wicket/pkg/model"
	"github.com/m-mizutani/wicket/pkg/repository"
)

func newMatch(id string, home, away string, date time.Time, status model.MatchStatus) *model.Match {
	return &model.Match{
		ID:         model.MatchID(id),
		Home:       home,
		Away:       away,
		Date:       date,
		Status:     status,
		SeriesName: "Asia Cup",
	}
}

func testRepository(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	prefix := fmt.Sprintf("test-%d-", time.Now().UnixNano())
	id := func(s string) string { return prefix + s }

	t.Run("match upsert never regresses", func(t *testing.T) {
		m := newMatch(id("m1"), "India", "Pakistan", time.Date(2023, 9, 10, 9, 0, 0, 0, time.UTC), model.MatchStatusLive)
		gt.NoError(t, repo.PutMatch(ctx, m))

		done := newMatch(id("m1"), "India", "Pakistan", m.Date, model.MatchStatusFinished)
		done.Winner = "India"
		gt.NoError(t, repo.PutMatch(ctx, done))

		stale := newMatch(id("m1"), "India", "Pakistan", m.Date, model.MatchStatusLive)
		gt.NoError(t, repo.PutMatch(ctx, stale))

		got, err := repo.GetMatch(ctx, model.MatchID(id("m1")))
		gt.NoError(t, err)
		gt.Equal(t, got.Status, model.MatchStatusFinished)
		gt.Equal(t, got.Winner, "India")

		// same write twice is a no-op
		gt.NoError(t, repo.PutMatch(ctx, done))
		got, err = repo.GetMatch(ctx, model.MatchID(id("m1")))
		gt.NoError(t, err)
		gt.Equal(t, got.Status, model.MatchStatusFinished)
	})

	t.Run("missing match", func(t *testing.T) {
		_, err := repo.GetMatch(ctx, model.MatchID(id("nothing")))
		gt.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("find matches by team and year", func(t *testing.T) {
		gt.NoError(t, repo.PutMatch(ctx, newMatch(id("m2"), "Sri Lanka", "India", time.Date(2023, 9, 17, 9, 0, 0, 0, time.UTC), model.MatchStatusFinished)))
		gt.NoError(t, repo.PutMatch(ctx, newMatch(id("m3"), "India", "Pakistan", time.Date(2022, 8, 28, 9, 0, 0, 0, time.UTC), model.MatchStatusFinished)))

		found, err := repo.FindMatches(ctx, repository.MatchQuery{Team: "India", Opponent: "Pakistan"})
		gt.NoError(t, err)
		var ids []model.MatchID
		for _, m := range found {
			if m.ID == model.MatchID(id("m1")) || m.ID == model.MatchID(id("m3")) {
				ids = append(ids, m.ID)
			}
		}
		gt.Equal(t, ids, []model.MatchID{model.MatchID(id("m1")), model.MatchID(id("m3"))})

		found, err = repo.FindMatches(ctx, repository.MatchQuery{Team: "SL", Year: 2023})
		gt.NoError(t, err)
		hit := false
		for _, m := range found {
			gt.Equal(t, m.Date.Year(), 2023)
			if m.ID == model.MatchID(id("m2")) {
				hit = true
			}
		}
		gt.True(t, hit)
	})

	t.Run("series", func(t *testing.T) {
		s := &model.Series{ID: model.SeriesID(id("s1")), Name: "Indian Premier League", Year: 2023, Participants: []string{"Chennai Super Kings", "Gujarat Titans"}}
		gt.NoError(t, repo.PutSeries(ctx, s))
		gt.NoError(t, repo.PutSeries(ctx, s))

		found, err := repo.FindSeries(ctx, repository.SeriesQuery{Team: "CSK", Year: 2023})
		gt.NoError(t, err)
		hits := 0
		for _, x := range found {
			if x.ID == s.ID {
				hits++
			}
		}
		gt.Equal(t, hits, 1)
	})

	t.Run("session", func(t *testing.T) {
		sid := model.SessionID(id("session"))
		_, err := repo.GetSession(ctx, sid)
		gt.True(t, errors.Is(err, model.ErrNotFound))

		gt.NoError(t, repo.PutSession(ctx, &model.Session{
			ID:     sid,
			Memory: model.SessionMemory{LastTeam: "India", LastYear: 2023},
		}))
		got, err := repo.GetSession(ctx, sid)
		gt.NoError(t, err)
		gt.Equal(t, got.Memory.LastTeam, "India")
		gt.Equal(t, got.Memory.LastYear, 2023)
	})

	t.Run("concurrent upserts", func(t *testing.T) {
		date := time.Date(2024, 6, 9, 9, 0, 0, 0, time.UTC)
		statuses := []model.MatchStatus{
			model.MatchStatusUpcoming, model.MatchStatusLive, model.MatchStatusInningsBreak,
			model.MatchStatusLive, model.MatchStatusFinished,
		}
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			for _, st := range statuses {
				wg.Add(1)
				go func(st model.MatchStatus) {
					defer wg.Done()
					gt.NoError(t, repo.PutMatch(ctx, newMatch(id("m4"), "India", "Pakistan", date, st)))
				}(st)
			}
		}
		wg.Wait()

		got, err := repo.GetMatch(ctx, model.MatchID(id("m4")))
		gt.NoError(t, err)
		gt.Equal(t, got.Status, model.MatchStatusFinished)
	})
}

func TestMemory(t *testing.T) {
	testRepository(t, repository.NewMemory())
}

func TestSQLite(t *testing.T) {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "wicket.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	testRepository(t, repo)
}

func TestFirestore(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	testRepository(t, repo)
}
