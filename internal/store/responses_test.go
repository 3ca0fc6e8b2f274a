package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

var responseRowColumns = []string{
	"id", "original_tweet_id", "routing_rule_id", "session_id", "response_text",
	"status", "error_message", "response_tweet_id", "created_at", "sent_at",
}

func TestResponseClaimForDispatch(t *testing.T) {
	t.Run("wins the claim", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
		if err != nil {
			t.Fatalf("sqlmock: %v", err)
		}
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(`UPDATE tweet_responses SET status = \$1, error_message = NULL\s+WHERE id = \$2 AND status IN \(\$3, \$4\)`).
			WithArgs("dispatching", "resp-1", "pending", "failed").
			WillReturnRows(sqlmock.NewRows(responseRowColumns).
				AddRow("resp-1", "1234567890", "rule-1", nil, "Thanks, we are on it", "dispatching", nil, nil, now, nil))

		store := NewResponseStore(db)
		resp, err := store.ClaimForDispatch(context.Background(), "resp-1")
		if err != nil {
			t.Fatalf("ClaimForDispatch: %v", err)
		}
		if resp.Status != "dispatching" {
			t.Fatalf("unexpected status: %s", resp.Status)
		}
		if resp.RoutingRuleID == nil || *resp.RoutingRuleID != "rule-1" {
			t.Fatalf("unexpected rule id: %v", resp.RoutingRuleID)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("expectations: %v", err)
		}
	})

	t.Run("already sent", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
		if err != nil {
			t.Fatalf("sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery(`UPDATE tweet_responses SET status = \$1`).
			WillReturnRows(sqlmock.NewRows(responseRowColumns))
		mock.ExpectQuery(`SELECT status FROM tweet_responses WHERE id = \$1`).
			WithArgs("resp-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("sent"))

		store := NewResponseStore(db)
		_, err = store.ClaimForDispatch(context.Background(), "resp-1")
		if !errors.Is(err, ErrResponseSent) {
			t.Fatalf("expected ErrResponseSent, got %v", err)
		}
	})

	t.Run("claim held elsewhere", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
		if err != nil {
			t.Fatalf("sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery(`UPDATE tweet_responses SET status = \$1`).
			WillReturnRows(sqlmock.NewRows(responseRowColumns))
		mock.ExpectQuery(`SELECT status FROM tweet_responses WHERE id = \$1`).
			WithArgs("resp-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("dispatching"))

		store := NewResponseStore(db)
		_, err = store.ClaimForDispatch(context.Background(), "resp-1")
		if !errors.Is(err, ErrResponseDispatching) {
			t.Fatalf("expected ErrResponseDispatching, got %v", err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
		if err != nil {
			t.Fatalf("sqlmock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery(`UPDATE tweet_responses SET status = \$1`).
			WillReturnRows(sqlmock.NewRows(responseRowColumns))
		mock.ExpectQuery(`SELECT status FROM tweet_responses WHERE id = \$1`).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"status"}))

		store := NewResponseStore(db)
		_, err = store.ClaimForDispatch(context.Background(), "ghost")
		if !errors.Is(err, ErrResponseNotFound) {
			t.Fatalf("expected ErrResponseNotFound, got %v", err)
		}
	})
}

func TestResponseHasOpenResponse(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("1234567890", "pending", "dispatching").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewResponseStore(db)
	open, err := store.HasOpenResponse(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("HasOpenResponse: %v", err)
	}
	if !open {
		t.Fatal("expected an open response")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResponseMarkSent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE tweet_responses\s+SET status = \$1, response_tweet_id = \$2, session_id = \$3, sent_at = \$4, error_message = NULL`).
		WithArgs("sent", "9876543210", "sess-1", sqlmock.AnyArg(), "resp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewResponseStore(db)
	if err := store.MarkSent(context.Background(), "resp-1", "9876543210", "sess-1"); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReleaseStaleDispatching(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE tweet_responses SET status = \$1, error_message = \$2\s+WHERE status = \$3`).
		WithArgs("failed", "dispatch interrupted by restart", "dispatching").
		WillReturnResult(sqlmock.NewResult(0, 2))

	store := NewResponseStore(db)
	released, err := store.ReleaseStaleDispatching(context.Background())
	if err != nil {
		t.Fatalf("ReleaseStaleDispatching: %v", err)
	}
	if released != 2 {
		t.Fatalf("released = %d, want 2", released)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResponseCreate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	ruleID := "rule-1"
	mock.ExpectExec(`INSERT INTO tweet_responses \(id, original_tweet_id, routing_rule_id, response_text, status\)`).
		WithArgs(sqlmock.AnyArg(), "1234567890", &ruleID, "Thanks, we are on it", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewResponseStore(db)
	id, err := store.Create(context.Background(), "1234567890", "Thanks, we are on it", &ruleID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResponseCreateDuplicateOpen(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO tweet_responses`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_tweet_responses_one_open"})

	store := NewResponseStore(db)
	_, err = store.Create(context.Background(), "1234567890", "Thanks, we are on it", nil)
	if !errors.Is(err, ErrDuplicateOpen) {
		t.Fatalf("expected ErrDuplicateOpen, got %v", err)
	}
}
