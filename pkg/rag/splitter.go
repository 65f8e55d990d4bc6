package rag

import "strings"

const (
	// DefaultChunkSize and DefaultChunkOverlap are counted in characters.
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100

	// DefaultSeparator splits text into paragraphs.
	DefaultSeparator = "\n\n"
)

// Splitter cuts text into overlapping chunks. Paragraphs are packed into a
// chunk until the next one would overflow ChunkSize. The next chunk then
// starts with the last ChunkOverlap characters of the previous one. A chunk
// still longer than one and a half ChunkSize is cut into fixed windows.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

// NewSplitter returns a Splitter with the default sizes.
func NewSplitter() *Splitter {
	return &Splitter{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separator:    DefaultSeparator,
	}
}

// Split returns the chunks of text. Blank text yields none.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	size := s.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	sep := s.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	sepLen := runeLen(sep)

	var (
		chunks  []string
		current []rune
	)
	flush := func() {
		if c := strings.TrimSpace(string(current)); c != "" {
			chunks = append(chunks, c)
		}
	}

	for _, part := range strings.Split(text, sep) {
		p := []rune(part)
		if len(current)+len(p)+sepLen <= size {
			current = append(current, p...)
			current = append(current, []rune(sep)...)
			continue
		}

		flush()
		var next []rune
		if s.ChunkOverlap > 0 && len(current) > 0 {
			next = append(next, current[max(0, len(current)-s.ChunkOverlap):]...)
		}
		next = append(next, p...)
		current = append(next, []rune(sep)...)
	}
	flush()

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		r := []rune(c)
		if len(r)*2 <= size*3 {
			out = append(out, c)
			continue
		}
		for i := 0; i < len(r); i += size {
			out = append(out, string(r[i:min(i+size, len(r))]))
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
