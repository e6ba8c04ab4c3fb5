package chapters

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"

	"mangarecap/internal/fileutil"
	"mangarecap/internal/pages"
	"mangarecap/internal/services"
	"mangarecap/internal/textutil"
)

// Placeholder is replaced by the chapter name inside an output path.
const Placeholder = "{chapter}"

// Chapter is one directory of page images.
type Chapter struct {
	ID     string `json:"id"`
	Dir    string `json:"dir"`
	Name   string `json:"name"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Pages  int    `json:"pages"`
}

var digitsPattern = regexp.MustCompile(`\d+`)

// ID derives the chapter identifier from its directory: the sanitized base
// name plus the first 8 hex characters of the SHA-256 of the absolute path.
func ID(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve chapter dir: %w", err)
	}
	return textutil.SanitizeToken(filepath.Base(abs)) + "-" + fileutil.HashStrings(abs)[:8], nil
}

// ParseNumber returns the first integer embedded in name.
func ParseNumber(name string) (int, bool) {
	match := digitsPattern.FindString(name)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Title turns a directory name such as "chapter_01-the_start" into
// "Chapter 01 The Start".
func Title(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	if len(words) == 0 {
		return strings.TrimSpace(name)
	}
	return cases.Title(xlanguage.Und).String(strings.ToLower(strings.Join(words, " ")))
}

// New builds the Chapter for dir. position is the 1-based index in the batch,
// used when the directory name carries no number.
func New(dir string, position int) (Chapter, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Chapter{}, fmt.Errorf("resolve chapter dir: %w", err)
	}
	id, err := ID(abs)
	if err != nil {
		return Chapter{}, err
	}
	found, err := pages.Discover(abs)
	if err != nil {
		return Chapter{}, err
	}
	name := filepath.Base(abs)
	number, ok := ParseNumber(name)
	if !ok {
		number = position
	}
	return Chapter{
		ID:     id,
		Dir:    abs,
		Name:   name,
		Number: number,
		Title:  Title(name),
		Pages:  len(found),
	}, nil
}

// Discover lists the chapters under root in natural name order. A root that
// holds page images directly and no chapter subdirectories is a single
// chapter. limit > 0 keeps only the first limit chapters.
func Discover(root string, limit int) ([]Chapter, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "chapters", "discover", "chapters directory not readable", err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "chapters", "discover", root+" is not a directory", nil)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "chapters", "discover", "chapters directory not readable", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		found, err := pages.Discover(filepath.Join(root, name))
		if err != nil || len(found) == 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return textutil.NaturalLess(names[i], names[j]) })

	dirs := make([]string, 0, len(names))
	for _, name := range names {
		dirs = append(dirs, filepath.Join(root, name))
	}
	if len(dirs) == 0 {
		found, err := pages.Discover(root)
		if err == nil && len(found) > 0 {
			dirs = append(dirs, root)
		}
	}
	if len(dirs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "chapters", "discover", "no chapter directories with page images under "+root, nil)
	}
	if limit > 0 && len(dirs) > limit {
		dirs = dirs[:limit]
	}

	chapters := make([]Chapter, 0, len(dirs))
	for i, dir := range dirs {
		ch, err := New(dir, i+1)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	return chapters, nil
}

// OutputPath resolves where a chapter's video is written. A {chapter}
// placeholder is replaced by the chapter name. Otherwise multi-chapter runs
// append "_<chapter>" to the file stem and single-chapter runs use output as is.
func OutputPath(output string, ch Chapter, multi bool) string {
	name := textutil.SanitizeFileName(ch.Name)
	if name == "" {
		name = ch.ID
	}
	if strings.Contains(output, Placeholder) {
		return strings.ReplaceAll(output, Placeholder, name)
	}
	if !multi {
		return output
	}
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_" + name + ext
}
