//go:build ignore

// Analyze-capture re-decodes psu-bridge JSONL captures with the current
// codecs and reports per-tag statistics plus any frame whose decoded value
// no longer matches what the bridge recorded.
//
// Usage: go run tools/analyze-capture.go <directory-or-file>
package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/muurk/psulink/internal/bridge"
	"github.com/muurk/psulink/internal/dp100"
	"github.com/muurk/psulink/internal/dps150"
	"github.com/muurk/psulink/internal/protocol"
)

// Statistics tracks decoding results
type Statistics struct {
	TotalFiles   int
	TotalFrames  int
	Decoded      int
	Failed       []Failure
	Mismatched   []Failure
	Tags         map[string]int
	FrameLengths map[int]int
}

// Failure locates one frame that did not decode as recorded.
type Failure struct {
	File    string
	Line    int
	Tag     string
	Frame   string
	Message string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze-capture <directory-or-file>")
		fmt.Println("Example: analyze-capture captures/capture-20260301-101500.jsonl")
		os.Exit(1)
	}

	path := os.Args[1]
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.jsonl"))
		if err != nil || len(files) == 0 {
			fmt.Printf("No JSONL files found in %s\n", path)
			os.Exit(1)
		}
	}

	stats := Statistics{
		Tags:         make(map[string]int),
		FrameLengths: make(map[int]int),
	}
	for _, file := range files {
		processFile(file, &stats)
	}
	printStatistics(&stats)

	if len(stats.Failed) > 0 || len(stats.Mismatched) > 0 {
		os.Exit(2)
	}
}

func processFile(filename string, stats *Statistics) {
	stats.TotalFiles++

	f, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error reading file %s: %v\n", filename, err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec bridge.CaptureRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			fmt.Printf("Error parsing JSON in %s line %d: %v\n", filename, line, err)
			continue
		}
		stats.TotalFrames++
		stats.Tags[rec.Variant+" "+rec.Tag]++

		fail := func(msg string) Failure {
			return Failure{File: filename, Line: line, Tag: rec.Tag, Frame: rec.FrameHex, Message: msg}
		}

		raw, err := hex.DecodeString(rec.FrameHex)
		if err != nil {
			stats.Failed = append(stats.Failed, fail(fmt.Sprintf("hex decode error: %v", err)))
			continue
		}
		stats.FrameLengths[len(raw)]++

		text, err := redecode(rec.Variant, raw)
		if err != nil {
			// frames the bridge already logged as undecodable are expected
			if rec.Error == "" {
				stats.Failed = append(stats.Failed, fail(err.Error()))
			} else {
				stats.Decoded++
			}
			continue
		}
		stats.Decoded++
		if rec.Error == "" && text != rec.Value {
			stats.Mismatched = append(stats.Mismatched, fail(fmt.Sprintf("recorded %q, decodes as %q", rec.Value, text)))
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Error reading %s: %v\n", filename, err)
	}
}

func redecode(variant string, raw []byte) (string, error) {
	var v protocol.Value
	switch variant {
	case "dps150":
		f, err := dps150.Parse(raw)
		if err != nil {
			return "", err
		}
		if v, err = dps150.Decode(f); err != nil {
			return "", err
		}
	case "dp100":
		f, err := dp100.Parse(raw)
		if err != nil {
			return "", err
		}
		if v, err = dp100.Decode(f); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown variant %q", variant)
	}
	if v == nil {
		return "", nil
	}
	return v.String(), nil
}

func printStatistics(stats *Statistics) {
	fmt.Printf("=== psulink Capture Analyzer ===\n")
	fmt.Printf("Files:   %d\n", stats.TotalFiles)
	fmt.Printf("Frames:  %d\n", stats.TotalFrames)
	fmt.Printf("Decoded: %d\n", stats.Decoded)
	fmt.Printf("Failed:  %d\n", len(stats.Failed))
	fmt.Printf("Changed: %d\n\n", len(stats.Mismatched))

	fmt.Println("Frames per tag:")
	tags := make([]string, 0, len(stats.Tags))
	for t := range stats.Tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	for _, t := range tags {
		fmt.Printf("  %-28s %6d\n", t, stats.Tags[t])
	}

	fmt.Println("\nFrame lengths:")
	lengths := make([]int, 0, len(stats.FrameLengths))
	for n := range stats.FrameLengths {
		lengths = append(lengths, n)
	}
	sort.Ints(lengths)
	for _, n := range lengths {
		fmt.Printf("  %4d bytes: %d\n", n, stats.FrameLengths[n])
	}

	for _, group := range []struct {
		title string
		list  []Failure
	}{{"Failed frames", stats.Failed}, {"Changed values", stats.Mismatched}} {
		if len(group.list) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n", group.title)
		for i, f := range group.list {
			if i == 20 {
				fmt.Printf("  ... and %d more\n", len(group.list)-20)
				break
			}
			fmt.Printf("  %s:%d %s %s\n    %s\n", filepath.Base(f.File), f.Line, f.Tag, f.Frame, f.Message)
		}
	}
}
