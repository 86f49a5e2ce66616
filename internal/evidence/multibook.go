package evidence

import (
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	chapterIndicator = regexp.MustCompile(`(?i)\b(?:chapter|ch\.?|part|prologue|epilogue|intro|outro|disc|cd|track|section)\s*\d*\b`)
	bookNumberMarker = regexp.MustCompile(`(?i)(?:\b(?:book|volume|vol\.?)\s*(\d+)|#(\d+)\s*-)`)
	leadingNumber    = regexp.MustCompile(`^(\d+)`)
)

// MultiBookResult describes whether a folder's audio files are chapters of
// one book or several distinct books.
type MultiBookResult struct {
	MultiBook   bool
	Reason      string
	BookNumbers []int
}

// DetectMultiBook inspects the file names of a folder. Chapter naming and
// sequential numbering mean one book; two or more distinct "Book N" markers
// mean a folder that holds several books.
func DetectMultiBook(files []string) MultiBookResult {
	if len(files) < 2 {
		return MultiBookResult{Reason: "single_file"}
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		names = append(names, strings.TrimSuffix(base, filepath.Ext(base)))
	}

	chapters := 0
	for _, n := range names {
		if chapterIndicator.MatchString(n) {
			chapters++
		}
	}
	if float64(chapters)/float64(len(names)) > 0.3 {
		return MultiBookResult{Reason: "chapter_names"}
	}

	seen := make(map[int]struct{})
	for _, n := range names {
		m := bookNumberMarker.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if num, err := strconv.Atoi(raw); err == nil {
			seen[num] = struct{}{}
		}
	}
	if len(seen) >= 2 {
		nums := make([]int, 0, len(seen))
		for n := range seen {
			nums = append(nums, n)
		}
		slices.Sort(nums)
		return MultiBookResult{MultiBook: true, Reason: "book_numbers", BookNumbers: nums}
	}

	if sequential(names) {
		return MultiBookResult{Reason: "sequential_numbers"}
	}
	return MultiBookResult{Reason: "default_chapters"}
}

func sequential(names []string) bool {
	var nums []int
	for _, n := range names {
		m := leadingNumber.FindStringSubmatch(n)
		if m == nil {
			return false
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return false
		}
		nums = append(nums, v)
	}
	slices.Sort(nums)
	if nums[0] > 1 {
		return false
	}
	for i := 1; i < len(nums); i++ {
		if nums[i]-nums[i-1] > 2 {
			return false
		}
	}
	return true
}
