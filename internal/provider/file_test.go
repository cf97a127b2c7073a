package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-funnel-metrics/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

var fileWindow = pipeline.Query{
	Since: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	Until: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
}

func TestReadDocuments_CSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "jobs.csv", "\"id\", status ,amount,professionalId\n007,pending,12.5,0042\n008,matched,3,\n")

	docs, err := ReadDocuments(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "007", docs[0]["id"])
	assert.Equal(t, "pending", docs[0]["status"])
	assert.Equal(t, 12.5, docs[0]["amount"])
	assert.Equal(t, "0042", docs[0]["professionalId"])
	assert.Equal(t, 3, docs[1]["amount"])
	assert.Equal(t, path, docs[0]["SourceURL"])
}

func TestReadDocuments_JSONShapes(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	arr := writeFile(t, dir, "arr.json", `[{"id":"a"},{"id":"b"},"skip"]`)
	docs, err := ReadDocuments(ctx, arr)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, arr, docs[1]["SourceURL"])

	env := writeFile(t, dir, "env.json", `{"data":[{"id":"c"}],"has_more":false}`)
	docs, err = ReadDocuments(ctx, env)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c", docs[0]["id"])

	single := writeFile(t, dir, "one.json", `{"id":"d"}`)
	docs, err = ReadDocuments(ctx, single)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	bad := writeFile(t, dir, "bad.json", `42`)
	_, err = ReadDocuments(ctx, bad)
	assert.Error(t, err)
}

func TestReadDocuments_Errors(t *testing.T) {
	_, err := ReadDocuments(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrSourceNotConfigured))

	_, err = ReadDocuments(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFileSource_WindowFiltering(t *testing.T) {
	dir := t.TempDir()
	paths := FilePaths{
		Records: writeFile(t, dir, "records.json", `[
			{"id":"in","status":"pending","createdAt":"2024-03-10T00:00:00Z"},
			{"id":"old","status":"pending","createdAt":"2024-01-10T00:00:00Z"},
			{"id":"undated","status":"pending"}
		]`),
		Tickets: writeFile(t, dir, "tickets.csv", "id,status,created_at\nt1,aberto,2024-03-05\nt2,aberto,2023-12-01\n"),
		Payments: writeFile(t, dir, "payments.json", `{"data":[
			{"id":"ch_1","status":"Failed","amount":1500,"currency":"brl","created":1710000000},
			{"id":"ch_2","status":"succeeded","amount":900,"currency":"brl","created":1600000000}
		]}`),
		Feedback: writeFile(t, dir, "feedback.json", `[{"id":"f1","rating":2,"createdAt":"2024-03-12T10:00:00Z"},{"id":"f2","score":9,"createdAt":"2022-01-01"}]`),
		Profiles: writeFile(t, dir, "profiles.json", `[{"id":"p1","name":"Ana"}]`),
	}
	src := NewFileSource(paths)
	ctx := context.Background()

	records, err := src.FetchRecords(ctx, fileWindow)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "in", records[0]["id"])
	assert.Equal(t, "undated", records[1]["id"])

	tickets, err := src.FetchTickets(ctx, fileWindow)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "t1", tickets[0]["id"])

	payments, err := src.FetchPayments(ctx, fileWindow)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "ch_1", payments[0].ID)
	assert.Equal(t, "failed", payments[0].Status)
	assert.Equal(t, int64(1500), payments[0].Amount)

	feedback, err := src.FetchFeedback(ctx, fileWindow)
	require.NoError(t, err)
	require.Len(t, feedback, 1)
	assert.Equal(t, 4.0, feedback[0].Score)

	profiles, err := src.FetchProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Ana", profiles[0].Name)
}

func TestFileSource_UnsetPathIsNotConfigured(t *testing.T) {
	_, err := NewFileSource(FilePaths{}).FetchPayments(context.Background(), fileWindow)
	assert.True(t, errors.Is(err, pipeline.ErrSourceNotConfigured))
}

func TestUnavailable(t *testing.T) {
	down := Unavailable{Err: errors.New("no route to host")}
	ctx := context.Background()

	_, err := down.FetchRecords(ctx, fileWindow)
	assert.EqualError(t, err, "no route to host")
	_, err = down.FetchTickets(ctx, fileWindow)
	assert.Error(t, err)
	_, err = down.FetchPayments(ctx, fileWindow)
	assert.Error(t, err)
	_, err = down.FetchFeedback(ctx, fileWindow)
	assert.Error(t, err)
	_, err = down.FetchProfiles(ctx)
	assert.Error(t, err)
	_, err = down.FetchVisitors(ctx, fileWindow)
	assert.Error(t, err)
}
