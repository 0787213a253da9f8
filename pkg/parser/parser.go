package parser

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-embedding-service/pkg/g2g"
)

// Dataset bundles the parsed inputs of one attributed graph
type Dataset struct {
	Graph      *g2g.Graph
	Attributes *mat.Dense
	Labels     []int
}

// LoadDataset reads an attributed graph from three files: a whitespace or
// comma separated attribute matrix (one row per node), an edge list with
// one "u v" pair per line, and optionally a label file with one integer
// label per node. An empty labelPath skips labels.
func LoadDataset(graphPath, attrPath, labelPath string) (*Dataset, error) {
	attributes, err := LoadAttributes(attrPath)
	if err != nil {
		return nil, fmt.Errorf("loading attributes: %w", err)
	}

	numNodes, _ := attributes.Dims()
	graph, err := LoadEdgeList(graphPath, numNodes)
	if err != nil {
		return nil, fmt.Errorf("loading edge list: %w", err)
	}

	dataset := &Dataset{Graph: graph, Attributes: attributes}

	if labelPath != "" {
		labels, err := LoadLabels(labelPath, numNodes)
		if err != nil {
			return nil, fmt.Errorf("loading labels: %w", err)
		}
		dataset.Labels = labels
	}

	return dataset, nil
}

// LoadEdgeList reads an undirected edge list file into a graph with
// numNodes nodes. Lines starting with '#' or '%' are skipped.
func LoadEdgeList(path string, numNodes int) (*g2g.Graph, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open edge list: %w", err)
	}
	defer file.Close()

	graph := g2g.NewGraph(numNodes)

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "%") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected 'u v', got %q", lineNum, line)
		}

		u, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid node id %q", lineNum, fields[0])
		}
		v, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid node id %q", lineNum, fields[1])
		}

		if err := graph.AddEdge(u, v); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edge list: %w", err)
	}

	return graph, nil
}

// LoadAttributes reads a dense attribute matrix, one node per row. Values
// may be separated by commas or whitespace; every row must have the same
// number of columns.
func LoadAttributes(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attribute file: %w", err)
	}
	defer file.Close()

	var data []float64
	numCols := -1
	numRows := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := splitRow(line)
		if numCols == -1 {
			numCols = len(fields)
		} else if len(fields) != numCols {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", lineNum, numCols, len(fields))
		}

		for _, field := range fields {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q", lineNum, field)
			}
			data = append(data, value)
		}
		numRows++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attribute file: %w", err)
	}
	if numRows == 0 {
		return nil, fmt.Errorf("attribute file %s is empty", path)
	}

	return mat.NewDense(numRows, numCols, data), nil
}

// LoadLabels reads one integer label per line
func LoadLabels(path string, numNodes int) ([]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer file.Close()

	labels := make([]int, 0, numNodes)

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		label, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid label %q", lineNum, line)
		}
		labels = append(labels, label)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read label file: %w", err)
	}
	if len(labels) != numNodes {
		return nil, fmt.Errorf("label file has %d labels, expected %d", len(labels), numNodes)
	}

	return labels, nil
}

func splitRow(line string) []string {
	if strings.Contains(line, ",") {
		parts := strings.Split(line, ",")
		fields := make([]string, 0, len(parts))
		for _, p := range parts {
			fields = append(fields, strings.TrimSpace(p))
		}
		return fields
	}
	return strings.Fields(line)
}
