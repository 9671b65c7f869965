package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/immich-metasync/internal/database"
	"github.com/kozaktomas/immich-metasync/internal/database/mock"
	"github.com/kozaktomas/immich-metasync/internal/immich"
	"github.com/kozaktomas/immich-metasync/internal/metadata"
	"github.com/kozaktomas/immich-metasync/internal/pathmap"
	"github.com/rs/zerolog"
)

func newTestSyncer(src *fakeSource, files fakeFiles, io *fakeIO, store database.Store) *Syncer {
	return New(src, files, io, store, zerolog.Nop())
}

func captionOnly() metadata.CategorySet {
	return metadata.NewCategorySet(metadata.CategoryCaption)
}

func TestRun_Statuses(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{
		{
			captionAsset("a1", "/u/2024/a1.jpg", "new caption"),
			captionAsset("a2", "/u/2024/missing.jpg", "x"),
			captionAsset("a3", "/short.jpg", "x"),
		},
		{
			captionAsset("a4", "/u/2024/a4.jpg", "same"),
			captionAsset("a5", "/u/2024/a5.jpg", "denied"),
			{ID: "a6", Type: "IMAGE", OriginalPath: "/u/2024/a6.jpg", ExifInfo: &immich.ExifInfo{}},
			captionAsset("a7", "", "x"),
		},
	}}
	files := fakeFiles{
		"/u/2024/a1.jpg": nil,
		"/short.jpg":     fmt.Errorf("%w: /short.jpg", pathmap.ErrSegmentMismatch),
		"/u/2024/a4.jpg": nil,
		"/u/2024/a5.jpg": nil,
		"/u/2024/a6.jpg": nil,
		"":               fmt.Errorf("%w: empty", pathmap.ErrInvalidPath),
	}
	io := newFakeIO()
	io.set("/library/u/2024/a4.jpg", metadata.TagDescription, metadata.TextValue("same"))
	io.set("/library/u/2024/a4.jpg", metadata.TagCaptionAbstract, metadata.TextValue("same"))
	io.writeErr["/library/u/2024/a5.jpg"] = errWriteDenied
	store := mock.NewMockStore()

	stats, err := newTestSyncer(src, files, io, store).Run(context.Background(), Options{
		Categories:  captionOnly(),
		Concurrency: 3,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[Status]int{
		StatusUpdated:      1,
		StatusSimulated:    0,
		StatusSkipped:      2,
		StatusFileNotFound: 1,
		StatusPathMismatch: 1,
		StatusError:        2,
	}
	for status, n := range want {
		if got := stats.Count(status); got != n {
			t.Errorf("%s: expected %d, got %d", status, n, got)
		}
	}
	if stats.Total != 7 || stats.Processed() != 7 {
		t.Errorf("expected 7 total and processed, got %d/%d", stats.Total, stats.Processed())
	}
	if stats.CategoryChanges["caption"] != 1 {
		t.Errorf("expected 1 caption change, got %v", stats.CategoryChanges)
	}
	if len(stats.Failures) != 2 {
		t.Errorf("expected 2 failures, got %+v", stats.Failures)
	}
	if io.writeCount() != 1 {
		t.Errorf("expected 1 write, got %d", io.writeCount())
	}

	run, err := store.GetRun(context.Background(), stats.RunID)
	if err != nil || run == nil {
		t.Fatalf("expected stored run, got %v %v", run, err)
	}
	if run.Status != database.RunCompleted {
		t.Errorf("expected completed run, got %s", run.Status)
	}
	if run.Counts["updated"] != 1 || run.Total != 7 {
		t.Errorf("unexpected stored counters %d %v", run.Total, run.Counts)
	}
	info, _ := store.CheckpointInfo(context.Background())
	if info.Count != 0 {
		t.Errorf("expected checkpoint cleared after completed run, got %d", info.Count)
	}
}

func TestRun_DryRun(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{{captionAsset("a1", "/u/a1.jpg", "hello")}}}
	io := newFakeIO()
	store := mock.NewMockStore()

	stats, err := newTestSyncer(src, fakeFiles{"/u/a1.jpg": nil}, io, store).Run(context.Background(), Options{
		Categories: captionOnly(),
		DryRun:     true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Simulated != 1 || stats.Updated != 0 {
		t.Errorf("expected 1 simulated, got %+v", stats)
	}
	if stats.CategoryChanges["caption"] != 1 {
		t.Errorf("expected simulated caption change, got %v", stats.CategoryChanges)
	}
	if io.writeCount() != 0 {
		t.Errorf("dry run wrote %d files", io.writeCount())
	}
	if store.SaveCount() != 0 {
		t.Errorf("dry run saved checkpoint %d times", store.SaveCount())
	}
	run, _ := store.GetRun(context.Background(), stats.RunID)
	if run == nil || !run.DryRun {
		t.Errorf("expected stored dry run, got %+v", run)
	}
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	asset := immich.Asset{
		ID:           "p1",
		Type:         "IMAGE",
		OriginalPath: "/u/p1.jpg",
		IsFavorite:   true,
		Rating:       immich.Int{Optional: metadata.Some(4)},
		ExifInfo: &immich.ExifInfo{
			Description: immich.String{Optional: metadata.Some("Line one\r\nLine two")},
		},
		People: []immich.Person{
			{Name: "Alice"},
			{Name: ""},
			{Name: "Bob"},
			{Name: "Alice"},
		},
	}
	src := &fakeSource{pages: [][]immich.Asset{{asset}}}
	io := newFakeIO()
	s := newTestSyncer(src, fakeFiles{"/u/p1.jpg": nil}, io, mock.NewMockStore())
	opts := Options{Categories: metadata.NewCategorySet(metadata.CategoryPeople, metadata.CategoryCaption, metadata.CategoryRating)}

	first, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Updated != 1 {
		t.Fatalf("expected first run to update, got %+v", first)
	}

	second, err := s.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Skipped != 1 || second.Updated != 0 {
		t.Errorf("expected second run to skip, got updated=%d skipped=%d", second.Updated, second.Skipped)
	}
	if io.writeCount() != 1 {
		t.Errorf("expected exactly 1 write, got %d", io.writeCount())
	}
}

func TestRun_Force(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{{captionAsset("a1", "/u/a1.jpg", "same")}}}
	io := newFakeIO()
	io.set("/library/u/a1.jpg", metadata.TagDescription, metadata.TextValue("same"))
	io.set("/library/u/a1.jpg", metadata.TagCaptionAbstract, metadata.TextValue("same"))

	stats, err := newTestSyncer(src, fakeFiles{"/u/a1.jpg": nil}, io, mock.NewMockStore()).Run(context.Background(), Options{
		Categories: captionOnly(),
		Force:      true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Updated != 1 {
		t.Errorf("expected forced update, got %+v", stats)
	}
	if io.reads != 0 {
		t.Errorf("force should not read current tags, got %d reads", io.reads)
	}
}

func TestRun_ReadFailureForcesWrite(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{{captionAsset("a1", "/u/a1.jpg", "hello")}}}
	io := newFakeIO()
	io.readErr["/library/u/a1.jpg"] = errors.New("exiftool: bad file")

	stats, err := newTestSyncer(src, fakeFiles{"/u/a1.jpg": nil}, io, mock.NewMockStore()).Run(context.Background(), Options{
		Categories: captionOnly(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Updated != 1 || stats.ReadFailed != 1 {
		t.Errorf("expected update with read failure, got updated=%d read_failed=%d", stats.Updated, stats.ReadFailed)
	}
}

func TestRun_OnlyNew(t *testing.T) {
	lastStart := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	store := mock.NewMockStore()
	store.AddRun(database.Run{ID: "old", Status: database.RunCompleted, StartedAt: lastStart})
	store.AddRun(database.Run{ID: "dry", Status: database.RunCompleted, DryRun: true, StartedAt: lastStart.Add(time.Hour)})

	src := &fakeSource{}
	_, err := newTestSyncer(src, fakeFiles{}, newFakeIO(), store).Run(context.Background(), Options{
		Categories: captionOnly(),
		OnlyNew:    true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(src.searches) != 1 {
		t.Fatalf("expected 1 search, got %d", len(src.searches))
	}
	if !src.searches[0].UpdatedAfter.Equal(lastStart) {
		t.Errorf("expected updatedAfter %v, got %v", lastStart, src.searches[0].UpdatedAfter)
	}

	src = &fakeSource{}
	_, err = newTestSyncer(src, fakeFiles{}, newFakeIO(), mock.NewMockStore()).Run(context.Background(), Options{
		Categories: captionOnly(),
		OnlyNew:    true,
	})
	if err != nil {
		t.Fatalf("Run without history: %v", err)
	}
	if !src.searches[0].UpdatedAfter.IsZero() {
		t.Errorf("expected full sync without history, got %v", src.searches[0].UpdatedAfter)
	}
}

func TestRun_Resume(t *testing.T) {
	store := mock.NewMockStore()
	if err := store.SaveCheckpoint(context.Background(), []string{"a1", "a2"}); err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{pages: [][]immich.Asset{{
		captionAsset("a1", "/u/a1.jpg", "x"),
		captionAsset("a2", "/u/a2.jpg", "x"),
		captionAsset("a3", "/u/a3.jpg", "x"),
	}}}
	files := fakeFiles{"/u/a1.jpg": nil, "/u/a2.jpg": nil, "/u/a3.jpg": nil}
	io := newFakeIO()

	stats, err := newTestSyncer(src, files, io, store).Run(context.Background(), Options{
		Categories: captionOnly(),
		Resume:     true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Resumed != 2 || stats.Total != 1 || stats.Updated != 1 {
		t.Errorf("expected 2 resumed and 1 updated, got resumed=%d total=%d updated=%d", stats.Resumed, stats.Total, stats.Updated)
	}
	info, _ := store.CheckpointInfo(context.Background())
	if info.Count != 0 {
		t.Errorf("expected checkpoint cleared, got %d", info.Count)
	}
}

func TestRun_CheckpointInterval(t *testing.T) {
	var assets []immich.Asset
	files := fakeFiles{}
	for i := 1; i <= 5; i++ {
		path := fmt.Sprintf("/u/%d.jpg", i)
		assets = append(assets, captionAsset(fmt.Sprintf("a%d", i), path, "x"))
		files[path] = nil
	}
	store := mock.NewMockStore()

	_, err := newTestSyncer(&fakeSource{pages: [][]immich.Asset{assets}}, files, newFakeIO(), store).Run(context.Background(), Options{
		Categories:         captionOnly(),
		CheckpointInterval: 2,
		Concurrency:        2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.SaveCount() != 3 {
		t.Errorf("expected saves at 2, 4 and a final flush, got %d", store.SaveCount())
	}
}

func TestRun_ErrorsAreNotCheckpointed(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{{
		captionAsset("ok", "/u/ok.jpg", "x"),
		captionAsset("bad", "/u/bad.jpg", "x"),
	}}}
	io := newFakeIO()
	io.writeErr["/library/u/bad.jpg"] = errWriteDenied
	store := mock.NewMockStore()
	store.ClearCheckpointErr = errors.New("keep it")

	_, err := newTestSyncer(src, fakeFiles{"/u/ok.jpg": nil, "/u/bad.jpg": nil}, io, store).Run(context.Background(), Options{
		Categories: captionOnly(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	ids, _ := store.LoadCheckpoint(context.Background())
	if _, ok := ids["ok"]; !ok {
		t.Error("expected successful asset in checkpoint")
	}
	if _, ok := ids["bad"]; ok {
		t.Error("failed asset must not be checkpointed")
	}
}

func TestRun_Limit(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{
		{captionAsset("a1", "/u/1.jpg", "x"), captionAsset("a2", "/u/2.jpg", "x")},
		{captionAsset("a3", "/u/3.jpg", "x"), captionAsset("a4", "/u/4.jpg", "x")},
		{captionAsset("a5", "/u/5.jpg", "x")},
	}}
	stats, err := newTestSyncer(src, fakeFiles{}, newFakeIO(), mock.NewMockStore()).Run(context.Background(), Options{
		Categories: captionOnly(),
		Limit:      3,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected 3 assets, got %d", stats.Total)
	}
}

func TestRun_DetailFallback(t *testing.T) {
	src := &fakeSource{
		pages: [][]immich.Asset{{{ID: "v1", Type: "VIDEO", OriginalPath: "/u/v1.mp4"}}},
		details: map[string]*immich.Asset{
			"v1": {
				ID:           "v1",
				Type:         "VIDEO",
				OriginalPath: "/u/v1.mp4",
				ExifInfo:     &immich.ExifInfo{Description: immich.String{Optional: metadata.Some("from detail")}},
			},
		},
	}
	stats, err := newTestSyncer(src, fakeFiles{"/u/v1.mp4": nil}, newFakeIO(), mock.NewMockStore()).Run(context.Background(), Options{
		Categories: captionOnly(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.DetailFetches != 1 || stats.Updated != 1 {
		t.Errorf("expected detail fetch and update, got fetches=%d updated=%d", stats.DetailFetches, stats.Updated)
	}
}

func TestRun_Albums(t *testing.T) {
	a := captionAsset("a1", "/u/a1.jpg", "x")
	src := &fakeSource{
		pages:  [][]immich.Asset{{a}},
		albums: []immich.Album{{ID: "al1", AlbumName: "Paris 2024", Assets: []immich.Asset{{ID: "a1"}}}},
	}
	io := newFakeIO()
	stats, err := newTestSyncer(src, fakeFiles{"/u/a1.jpg": nil}, io, mock.NewMockStore()).Run(context.Background(), Options{
		Categories: metadata.NewCategorySet(metadata.CategoryAlbums),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.CategoryChanges["albums"] != 1 {
		t.Errorf("expected album change, got %v", stats.CategoryChanges)
	}
	v, ok := io.files["/library/u/a1.jpg"][metadata.TagEvent.Key]
	if !ok || v.Text != "Paris 2024" {
		t.Errorf("expected event Paris 2024, got %+v", v)
	}
}

func TestRun_AlbumFailureKeepsOtherCategories(t *testing.T) {
	src := &fakeSource{
		pages:     [][]immich.Asset{{captionAsset("a1", "/u/a1.jpg", "x")}},
		albumsErr: errors.New("albums endpoint down"),
	}
	stats, err := newTestSyncer(src, fakeFiles{"/u/a1.jpg": nil}, newFakeIO(), mock.NewMockStore()).Run(context.Background(), Options{
		Categories: metadata.NewCategorySet(metadata.CategoryAlbums, metadata.CategoryCaption),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Updated != 1 || stats.CategoryChanges["caption"] != 1 {
		t.Errorf("expected caption update, got %+v", stats)
	}
}

func TestRun_Cancelled(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{{
		captionAsset("a1", "/u/1.jpg", "x"),
		captionAsset("a2", "/u/2.jpg", "x"),
	}}}
	store := mock.NewMockStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := newTestSyncer(src, fakeFiles{}, newFakeIO(), store).Run(ctx, Options{Categories: captionOnly()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats == nil {
		t.Fatal("expected partial stats")
	}
	run, _ := store.GetRun(context.Background(), stats.RunID)
	if run == nil || run.Status != database.RunCancelled {
		t.Errorf("expected cancelled run, got %+v", run)
	}
}

func TestRun_SearchFailure(t *testing.T) {
	src := &fakeSource{searchErr: errors.New("server down")}
	store := mock.NewMockStore()

	stats, err := newTestSyncer(src, fakeFiles{}, newFakeIO(), store).Run(context.Background(), Options{Categories: captionOnly()})
	if err == nil {
		t.Fatal("expected error")
	}
	run, _ := store.GetRun(context.Background(), stats.RunID)
	if run == nil || run.Status != database.RunFailed || run.Error == "" {
		t.Errorf("expected failed run with error, got %+v", run)
	}
}

func TestRun_NoCategories(t *testing.T) {
	_, err := newTestSyncer(&fakeSource{}, fakeFiles{}, newFakeIO(), mock.NewMockStore()).Run(context.Background(), Options{})
	if !errors.Is(err, ErrNoCategories) {
		t.Errorf("expected ErrNoCategories, got %v", err)
	}
}

func TestRun_Progress(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{{
		captionAsset("a1", "/u/1.jpg", "x"),
		captionAsset("a2", "/u/2.jpg", "x"),
		captionAsset("a3", "/u/3.jpg", "x"),
	}}}
	var (
		mu      sync.Mutex
		events  []ProgressInfo
		maxSeen int
	)
	_, err := newTestSyncer(src, fakeFiles{}, newFakeIO(), mock.NewMockStore()).Run(context.Background(), Options{
		Categories:  captionOnly(),
		Concurrency: 2,
		OnProgress: func(p ProgressInfo) {
			mu.Lock()
			defer mu.Unlock()
			if p.Phase == PhaseProcessing {
				events = append(events, p)
				if p.Current > maxSeen {
					maxSeen = p.Current
				}
			}
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) != 3 || maxSeen != 3 {
		t.Errorf("expected 3 processing events up to 3, got %d (max %d)", len(events), maxSeen)
	}
	for _, e := range events {
		if e.Total != 3 || e.Status != StatusFileNotFound {
			t.Errorf("unexpected event %+v", e)
		}
	}
}

func TestStatusForPathError(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{fmt.Errorf("%w: x", pathmap.ErrNotFound), StatusFileNotFound},
		{fmt.Errorf("%w: x", pathmap.ErrSegmentMismatch), StatusPathMismatch},
		{fmt.Errorf("%w: x", pathmap.ErrOutsideRoot), StatusPathMismatch},
		{fmt.Errorf("%w: x", pathmap.ErrInvalidPath), StatusError},
		{errors.New("other"), StatusError},
	}
	for _, tc := range tests {
		if got := statusForPathError(tc.err); got != tc.want {
			t.Errorf("statusForPathError(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestInspect(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{{captionAsset("a1", "/u/a1.jpg", "hello")}}}
	io := newFakeIO()
	io.set("/library/u/a1.jpg", metadata.TagDescription, metadata.TextValue("old"))
	s := newTestSyncer(src, fakeFiles{"/u/a1.jpg": nil}, io, mock.NewMockStore())

	in, err := s.Inspect(context.Background(), "a1", captionOnly(), 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if in.Status != StatusSimulated {
		t.Errorf("expected simulated, got %s", in.Status)
	}
	if in.Desired["caption"]["XMP-dc:Description"] != "hello" {
		t.Errorf("unexpected desired %v", in.Desired)
	}
	if in.Current["XMP-dc:Description"] != "old" {
		t.Errorf("unexpected current %v", in.Current)
	}
	if len(in.Diffs) == 0 {
		t.Error("expected diffs")
	}
	if io.writeCount() != 0 {
		t.Error("inspect must not write")
	}

	if _, err := s.Inspect(context.Background(), "missing", captionOnly(), 0); err == nil {
		t.Error("expected error for unknown asset")
	}
}

func TestInspect_FileMissing(t *testing.T) {
	src := &fakeSource{pages: [][]immich.Asset{{captionAsset("a1", "/u/a1.jpg", "hello")}}}
	in, err := newTestSyncer(src, fakeFiles{}, newFakeIO(), mock.NewMockStore()).Inspect(context.Background(), "a1", captionOnly(), 0)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if in.Status != StatusFileNotFound || in.PathError == "" {
		t.Errorf("expected file_not_found with path error, got %+v", in)
	}
}
