package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostingHistoryRepository_GetByPostID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostingHistoryRepository(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "user_id", "post_id", "platform", "status", "error_message", "created_at"}).
		AddRow(int64(1), int64(3), int64(7), "linkedin", "success", "", now).
		AddRow(int64(2), int64(3), int64(7), "twitter", "error", "rate limited", now)
	mock.ExpectQuery(`FROM posting_history WHERE post_id = \$1 ORDER BY created_at, id`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	entries, err := repo.GetByPostID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByPostID err=%v", err)
	}
	if len(entries) != 2 || entries[1].Platform != "twitter" || entries[1].ErrorMessage != "rate limited" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
