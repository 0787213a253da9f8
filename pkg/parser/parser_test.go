package parser

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeTempFile(t, dir, "edges.txt", "# comment line\n0 1\n1 2\n2 3\n% another comment\n3 4\n")
	attrPath := writeTempFile(t, dir, "attrs.txt", "1.0 0.0 0.5\n0.0 1.0 0.5\n1.0 1.0 0.0\n0.5 0.5 0.5\n0.0 0.0 1.0\n")
	labelPath := writeTempFile(t, dir, "labels.txt", "0\n0\n1\n1\n1\n")

	dataset, err := LoadDataset(graphPath, attrPath, labelPath)
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}

	if dataset.Graph.NumNodes != 5 {
		t.Errorf("graph has %d nodes, expected 5", dataset.Graph.NumNodes)
	}
	if dataset.Graph.NumEdges != 4 {
		t.Errorf("graph has %d edges, expected 4", dataset.Graph.NumEdges)
	}
	if !dataset.Graph.HasEdge(1, 2) || !dataset.Graph.HasEdge(2, 1) {
		t.Error("expected undirected edge between 1 and 2")
	}

	rows, cols := dataset.Attributes.Dims()
	if rows != 5 || cols != 3 {
		t.Errorf("attribute matrix (%d, %d), expected (5, 3)", rows, cols)
	}
	if dataset.Attributes.At(3, 1) != 0.5 {
		t.Errorf("attribute[3][1] = %f, expected 0.5", dataset.Attributes.At(3, 1))
	}

	if len(dataset.Labels) != 5 || dataset.Labels[2] != 1 {
		t.Errorf("labels %v, expected [0 0 1 1 1]", dataset.Labels)
	}
}

func TestLoadDatasetWithoutLabels(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeTempFile(t, dir, "edges.txt", "0 1\n")
	attrPath := writeTempFile(t, dir, "attrs.txt", "1.0 2.0\n3.0 4.0\n")

	dataset, err := LoadDataset(graphPath, attrPath, "")
	if err != nil {
		t.Fatalf("LoadDataset failed: %v", err)
	}
	if dataset.Labels != nil {
		t.Errorf("expected nil labels, got %v", dataset.Labels)
	}
}

func TestLoadAttributesCommaSeparated(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "attrs.csv", "1.5, 2.5\n3.5, 4.5\n")

	attrs, err := LoadAttributes(path)
	if err != nil {
		t.Fatalf("LoadAttributes failed: %v", err)
	}
	rows, cols := attrs.Dims()
	if rows != 2 || cols != 2 {
		t.Fatalf("matrix (%d, %d), expected (2, 2)", rows, cols)
	}
	if attrs.At(1, 0) != 3.5 {
		t.Errorf("attrs[1][0] = %f, expected 3.5", attrs.At(1, 0))
	}
}

func TestLoadAttributesErrors(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{name: "RaggedRows", content: "1.0 2.0\n3.0\n"},
		{name: "NonNumeric", content: "1.0 abc\n"},
		{name: "Empty", content: "# only comments\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempFile(t, dir, tc.name+".txt", tc.content)
			if _, err := LoadAttributes(path); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestLoadEdgeListErrors(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{name: "ShortLine", content: "0\n"},
		{name: "BadNodeID", content: "0 x\n"},
		{name: "OutOfRange", content: "0 9\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempFile(t, dir, tc.name+".txt", tc.content)
			if _, err := LoadEdgeList(path, 3); err == nil {
				t.Error("expected parse error")
			}
		})
	}

	if _, err := LoadEdgeList(filepath.Join(dir, "missing.txt"), 3); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadLabelsCountMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "labels.txt", "0\n1\n")

	if _, err := LoadLabels(path, 3); err == nil {
		t.Error("expected error for label count mismatch")
	}
}
