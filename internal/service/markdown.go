package service

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// newMarkdown — GFM без сырого HTML: теги из текста поста экранируются.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
		),
	)
}

// renderMarkdown возвращает HTML или пустую строку, если рендер не удался.
func (s *Service) renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}

	return buf.String(), nil
}
