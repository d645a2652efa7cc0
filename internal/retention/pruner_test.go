package retention

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/require"

	"sqlsink/internal/column"
	"sqlsink/internal/sqltype"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.FixedZone("CET", 3600))

func buildModel(t *testing.T, utc bool, store ...column.StandardField) *column.Model {
	t.Helper()
	return buildTimeStampModel(t, utc, sqltype.DateTime, store...)
}

func buildTimeStampModel(t *testing.T, utc bool, typ sqltype.Type, store ...column.StandardField) *column.Model {
	t.Helper()
	b, err := column.NewBuilder(store...)
	require.NoError(t, err)
	ts := b.Standard(column.TimeStamp)
	ts.Type = typ
	ts.Options = column.TimeStampOptions{ConvertToUTC: utc}
	require.NoError(t, b.ConfigureStandard(ts))
	return b.Build()
}

// civilConverter lets civil values through to the mock the way go-mssqldb
// accepts them.
type civilConverter struct{}

func (civilConverter) ConvertValue(v any) (driver.Value, error) {
	if dt, ok := v.(civil.DateTime); ok {
		return dt, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMock(t *testing.T, matcher sqlmock.QueryMatcher) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(matcher),
		sqlmock.ValueConverterOption(civilConverter{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// wallClockArg matches a zone-less @cutoff carrying the given wall clock.
type wallClockArg struct{ want civil.DateTime }

func (c wallClockArg) Match(v driver.Value) bool {
	got, ok := v.(civil.DateTime)
	return ok && got == c.want
}

// instantArg matches a @cutoff sent as an instant with its offset.
type instantArg struct{ want time.Time }

func (c instantArg) Match(v driver.Value) bool {
	got, ok := v.(time.Time)
	return ok && got.Equal(c.want) && got.Location().String() == c.want.Location().String()
}

// TestStatement checks the DELETE text.
func TestStatement(t *testing.T) {
	t.Parallel()

	got := Statement("logs", "App]Events", "TimeStamp")
	want := "DELETE FROM [logs].[App]]Events] WHERE [TimeStamp] < @cutoff"
	if got != want {
		t.Fatalf("Statement() = %q, want %q", got, want)
	}
}

// TestNewValidation covers disabled pruners and configuration errors.
func TestNewValidation(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p, err := New(Config{})
	require.NoError(t, err)
	require.False(t, p.Enabled())

	_, err = New(Config{RetentionPeriod: -time.Hour})
	require.Error(t, err)

	_, err = New(Config{RetentionPeriod: time.Hour, PruningInterval: 500 * time.Millisecond})
	require.ErrorContains(t, err, "1s schedule resolution")

	_, err = New(Config{DB: db, Schema: "dbo", Table: "Logs", RetentionPeriod: time.Hour})
	require.Error(t, err, "model is required")

	noTS := buildModel(t, false, column.Message, column.Level)
	_, err = New(Config{DB: db, Schema: "dbo", Table: "Logs", Model: noTS, RetentionPeriod: time.Hour})
	require.ErrorIs(t, err, column.ErrConfiguration)

	p, err = New(Config{DB: db, Schema: "dbo", Table: "Logs", Model: buildModel(t, false), RetentionPeriod: time.Hour})
	require.NoError(t, err)
	require.True(t, p.Enabled())
	require.Equal(t, DefaultPruningInterval, p.interval)
}

// TestTickDeletes runs one cycle and returns to Idle. Wall-clock columns get
// a zone-less cutoff in the clock rows are stored in; DATETIMEOFFSET columns
// get the instant.
func TestTickDeletes(t *testing.T) {
	tests := []struct {
		name string
		utc  bool
		typ  sqltype.Type
		want sqlmock.Argument
	}{
		{
			name: "local datetime",
			typ:  sqltype.DateTime,
			want: wallClockArg{civil.DateTime{Date: civil.Date{Year: 2024, Month: time.March, Day: 9}, Time: civil.Time{Hour: 12}}},
		},
		{
			name: "local datetime2",
			typ:  sqltype.DateTime2,
			want: wallClockArg{civil.DateTime{Date: civil.Date{Year: 2024, Month: time.March, Day: 9}, Time: civil.Time{Hour: 12}}},
		},
		{
			name: "utc datetime",
			utc:  true,
			typ:  sqltype.DateTime,
			want: wallClockArg{civil.DateTime{Date: civil.Date{Year: 2024, Month: time.March, Day: 9}, Time: civil.Time{Hour: 11}}},
		},
		{
			name: "local datetimeoffset",
			typ:  sqltype.DateTimeOffset,
			want: instantArg{fixedNow.Add(-24 * time.Hour)},
		},
		{
			name: "utc datetimeoffset",
			utc:  true,
			typ:  sqltype.DateTimeOffset,
			want: instantArg{fixedNow.Add(-24 * time.Hour).UTC()},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t, sqlmock.QueryMatcherEqual)

			p, err := New(Config{
				DB: db, Schema: "dbo", Table: "Logs",
				Model:           buildTimeStampModel(t, tt.utc, tt.typ),
				RetentionPeriod: 24 * time.Hour,
				Now:             func() time.Time { return fixedNow },
			})
			require.NoError(t, err)

			mock.ExpectExec("DELETE FROM [dbo].[Logs] WHERE [TimeStamp] < @cutoff").
				WithArgs(tt.want).
				WillReturnResult(sqlmock.NewResult(0, 7))

			n, ran, err := p.Tick(context.Background())
			require.NoError(t, err)
			require.True(t, ran)
			require.EqualValues(t, 7, n)
			require.Equal(t, Idle, p.State())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// TestTickFailureKeepsIdle reports the error and allows the next tick.
func TestTickFailureKeepsIdle(t *testing.T) {
	db, mock := newMock(t, sqlmock.QueryMatcherRegexp)

	p, err := New(Config{DB: db, Schema: "dbo", Table: "Logs", Model: buildModel(t, false), RetentionPeriod: time.Hour})
	require.NoError(t, err)

	boom := errors.New("lock timeout")
	mock.ExpectExec("DELETE FROM").WillReturnError(boom)
	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 2))

	_, ran, err := p.Tick(context.Background())
	require.True(t, ran)
	require.ErrorIs(t, err, boom)
	require.Equal(t, Idle, p.State())

	n, ran, err := p.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestTickSkipsOverlap drops a tick that fires while a delete is in flight.
func TestTickSkipsOverlap(t *testing.T) {
	db, mock := newMock(t, sqlmock.QueryMatcherRegexp)

	p, err := New(Config{DB: db, Schema: "dbo", Table: "Logs", Model: buildModel(t, false), RetentionPeriod: time.Hour})
	require.NoError(t, err)

	mock.ExpectExec("DELETE FROM").WillDelayFor(300 * time.Millisecond).WillReturnResult(sqlmock.NewResult(0, 1))

	done := make(chan error, 1)
	go func() {
		_, _, err := p.Tick(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return p.State() == Pruning }, time.Second, 5*time.Millisecond)

	n, ran, err := p.Tick(context.Background())
	require.NoError(t, err)
	require.False(t, ran)
	require.Zero(t, n)

	require.NoError(t, <-done)
	require.Equal(t, Idle, p.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDisabledNeverSchedules checks that a zero retention starts no timer.
func TestDisabledNeverSchedules(t *testing.T) {
	t.Parallel()

	p, err := New(Config{Schema: "dbo", Table: "Logs"})
	require.NoError(t, err)

	p.Start(context.Background())
	require.False(t, p.Running())

	n, ran, err := p.Tick(context.Background())
	require.NoError(t, err)
	require.False(t, ran)
	require.Zero(t, n)
	p.Stop()
}

// countingExecer counts DELETE calls made by scheduled ticks.
type countingExecer struct{ n atomic.Int64 }

func (c *countingExecer) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	c.n.Add(1)
	return sqlmock.NewResult(0, 0), nil
}

// TestStartStop runs the scheduler until at least one tick has fired.
func TestStartStop(t *testing.T) {
	db := &countingExecer{}
	p, err := New(Config{
		DB: db, Schema: "dbo", Table: "Logs", Model: buildModel(t, false),
		RetentionPeriod: time.Hour,
		PruningInterval: time.Second,
	})
	require.NoError(t, err)

	p.Start(context.Background())
	p.Start(context.Background())
	require.True(t, p.Running())

	require.Eventually(t, func() bool { return db.n.Load() > 0 }, 3*time.Second, 20*time.Millisecond)

	p.Stop()
	require.False(t, p.Running())
	p.Stop()
}
