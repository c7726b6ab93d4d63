package data

import (
	"os"
	"path/filepath"
	"testing"
)

func writeAnnotationDir(t *testing.T, csvContent string, embeddings []byte) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "annotations.csv"), []byte(csvContent), 0o644); err != nil {
		t.Fatal(err)
	}
	writeNPZ(t, filepath.Join(dir, "annotations_text_embeddings.npz"), map[string][]byte{
		"embeddings": embeddings,
	})
	return dir
}

func TestLoadAnnotations(t *testing.T) {
	csvContent := "filename,onset,offset,text,annotator\n" +
		"rec_001.mp3,0.5,2.25,dog barking,ann_07\n" +
		"rec_002.mp3,1.0,3.0,car horn,ann_03\n"
	dir := writeAnnotationDir(t, csvContent, encodeNPY(t, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6}))

	annotations, embeddings, err := LoadAnnotations(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(annotations) != 2 {
		t.Fatalf("got %d annotations, want 2", len(annotations))
	}
	first := annotations[0]
	if first.Filename != "rec_001.mp3" || first.Onset != 0.5 || first.Offset != 2.25 {
		t.Errorf("first annotation = %+v", first)
	}
	if first.Text != "dog barking" || first.Annotator != "ann_07" {
		t.Errorf("first annotation text fields = %+v", first)
	}
	if first.Duration != 1.75 {
		t.Errorf("Duration = %v, want 1.75", first.Duration)
	}
	if embeddings.Rows() != 2 {
		t.Errorf("embedding rows = %d, want 2", embeddings.Rows())
	}
}

func TestLoadAnnotationsCountMismatch(t *testing.T) {
	// One annotation row but three embedding rows: load succeeds anyway
	csvContent := "filename,onset,offset,text,annotator\nrec.mp3,0,1,speech,a1\n"
	dir := writeAnnotationDir(t, csvContent, encodeNPY(t, []int{3, 2}, []float64{1, 2, 3, 4, 5, 6}))

	annotations, embeddings, err := LoadAnnotations(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(annotations) != 1 || embeddings.Rows() != 3 {
		t.Errorf("got %d annotations and %d embedding rows", len(annotations), embeddings.Rows())
	}
}

func TestLoadAnnotationsRaggedRow(t *testing.T) {
	// A row shorter than the header is a parse error, not a crash
	csvContent := "filename,onset,offset,text,annotator\n" +
		"rec.mp3,0,1,speech,a1\n" +
		"rec2.mp3,0.5\n"
	dir := writeAnnotationDir(t, csvContent, encodeNPY(t, []int{2, 2}, []float64{1, 2, 3, 4}))

	if _, _, err := LoadAnnotations(dir); err == nil {
		t.Error("expected error for row with missing fields")
	}
}

func TestLoadAnnotationsMissingColumn(t *testing.T) {
	csvContent := "filename,onset,text,annotator\nrec.mp3,0,speech,a1\n"
	dir := writeAnnotationDir(t, csvContent, encodeNPY(t, []int{1, 2}, []float64{1, 2}))

	if _, _, err := LoadAnnotations(dir); err == nil {
		t.Error("expected error for missing offset column")
	}
}

func TestLoadAnnotationsMissingFile(t *testing.T) {
	if _, _, err := LoadAnnotations(t.TempDir()); err == nil {
		t.Error("expected error for missing annotations.csv")
	}
}

func TestIntervals(t *testing.T) {
	annotations := []Annotation{
		{Filename: "a.mp3", Onset: 0.1, Offset: 0.7, Text: "wind"},
		{Filename: "b.mp3", Onset: 1.0, Offset: 2.0, Text: "rain"},
	}

	intervals := Intervals(annotations)
	if len(intervals) != 2 {
		t.Fatalf("got %d intervals, want 2", len(intervals))
	}
	if intervals[0].Filename != "a.mp3" || intervals[0].Onset != 0.1 || intervals[0].Offset != 0.7 {
		t.Errorf("first interval = %+v", intervals[0])
	}
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	metaContent := "filename,title,keywords\nrec.mp3,Street sounds,traffic;horn\n"
	if err := os.WriteFile(filepath.Join(dir, "metadata.csv"), []byte(metaContent), 0o644); err != nil {
		t.Fatal(err)
	}
	writeNPZ(t, filepath.Join(dir, "metadata_title_embeddings.npz"), map[string][]byte{
		"embeddings": encodeNPY(t, []int{1, 2}, []float64{1, 2}),
	})
	writeNPZ(t, filepath.Join(dir, "metadata_keywords_embeddings.npz"), map[string][]byte{
		"embeddings": encodeNPY(t, []int{1, 2}, []float64{3, 4}),
	})

	table, titles, keywords, err := LoadMetadata(dir)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 1 {
		t.Errorf("metadata rows = %d, want 1", table.Len())
	}
	if len(table.Columns) != 3 || table.Columns[1] != "title" {
		t.Errorf("columns = %v", table.Columns)
	}
	if titles.Rows() != 1 || keywords.Rows() != 1 {
		t.Errorf("embedding rows = %d/%d, want 1/1", titles.Rows(), keywords.Rows())
	}
}

func TestLoadAudioFeatures(t *testing.T) {
	dir := t.TempDir()
	writeNPZ(t, filepath.Join(dir, "rec_a.npz"), map[string][]byte{
		"embeddings": encodeNPY(t, []int{3, 2}, []float64{1, 2, 3, 4, 5, 6}),
		"mfcc":       encodeNPY(t, []int{3, 1}, []float64{7, 8, 9}),
	})
	writeNPZ(t, filepath.Join(dir, "rec_b.npz"), map[string][]byte{
		"embeddings": encodeNPY(t, []int{2, 2}, []float64{1, 2, 3, 4}),
	})
	// Not an npz file; must be ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tracks, err := LoadAudioFeatures(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d files, want 2", len(tracks))
	}
	if got := len(tracks["rec_a"]["embeddings"]); got != 3 {
		t.Errorf("rec_a embeddings frames = %d, want 3", got)
	}

	// Restricting to one stem
	tracks, err = LoadAudioFeatures(dir, []string{"rec_b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Errorf("restricted load returned %d files, want 1", len(tracks))
	}

	// Key missing from rec_b: only rec_a survives
	tracks, err = LoadAudioFeatures(dir, nil, "mfcc")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Errorf("mfcc load returned %d files, want 1", len(tracks))
	}

	if _, err := LoadAudioFeatures(dir, nil, "chroma"); err == nil {
		t.Error("expected error when no file carries the key")
	}
}

func TestLoadAudioFeaturesMissingDir(t *testing.T) {
	if _, err := LoadAudioFeatures(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("expected error for missing directory")
	}
}
