// Package markdown разбирает markdown статей: HTML для писем и блоки для PDF и текста.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var base = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))

// Converter переводит markdown в HTML. Сырой HTML из текста не пропускается.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter создаёт конвертер, который опускает заголовки на shift уровней
// (но не ниже h6), чтобы они не спорили с заголовками письма.
func NewConverter(shift int) Converter {
	return Converter{md: goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithParserOptions(parser.WithASTTransformers(util.Prioritized(headingShift(shift), 100))),
	)}
}

// HTML возвращает фрагмент HTML без санитайза.
func (c Converter) HTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type headingShift int

func (s headingShift) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering {
			h.Level = min(h.Level+int(s), 6)
		}
		return ast.WalkContinue, nil
	})
}

// BlockKind - вид блока.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockRule
	BlockListItem
	BlockCode
)

// Run - кусок текста одного начертания.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
}

// Block - абзац, заголовок, разделитель, пункт списка или код.
// Level хранит уровень заголовка или глубину списка.
type Block struct {
	Kind  BlockKind
	Level int
	Runs  []Run
}

// Text склеивает куски без начертаний.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Blocks разбирает content в плоский список блоков в порядке документа.
func Blocks(content string) []Block {
	src := []byte(content)
	doc := base.Parser().Parse(text.NewReader(src))

	var blocks []Block
	bold, italic, depth := 0, 0, 0
	push := func(b Block) { blocks = append(blocks, b) }
	write := func(s string) {
		if s == "" {
			return
		}
		if len(blocks) == 0 {
			push(Block{Kind: BlockParagraph})
		}
		b := &blocks[len(blocks)-1]
		r := Run{Text: s, Bold: bold > 0, Italic: italic > 0}
		if n := len(b.Runs); n > 0 && b.Runs[n-1].Bold == r.Bold && b.Runs[n-1].Italic == r.Italic {
			b.Runs[n-1].Text += s
			return
		}
		b.Runs = append(b.Runs, r)
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.Heading:
			if entering {
				push(Block{Kind: BlockHeading, Level: n.Level})
			}
		case *ast.Paragraph, *ast.TextBlock:
			// первый абзац пункта списка пишется в сам пункт
			if _, inItem := n.Parent().(*ast.ListItem); entering && !(inItem && n.PreviousSibling() == nil) {
				push(Block{Kind: BlockParagraph})
			}
		case *ast.List:
			if entering {
				depth++
			} else {
				depth--
			}
		case *ast.ListItem:
			if entering {
				push(Block{Kind: BlockListItem, Level: depth})
			}
		case *ast.ThematicBreak:
			if entering {
				push(Block{Kind: BlockRule})
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				var sb strings.Builder
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(src))
				}
				push(Block{Kind: BlockCode, Runs: []Run{{Text: strings.TrimRight(sb.String(), "\n")}}})
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Emphasis:
			delta := 1
			if !entering {
				delta = -1
			}
			if n.Level >= 2 {
				bold += delta
			} else {
				italic += delta
			}
		case *ast.AutoLink:
			if entering {
				write(string(n.URL(src)))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				write(string(n.Segment.Value(src)))
				switch {
				case n.HardLineBreak():
					write("\n")
				case n.SoftLineBreak():
					write(" ")
				}
			}
		case *ast.String:
			if entering {
				write(string(n.Value))
			}
		}
		return ast.WalkContinue, nil
	})

	for i := range blocks {
		if k := len(blocks[i].Runs); k > 0 {
			blocks[i].Runs[k-1].Text = strings.TrimRight(blocks[i].Runs[k-1].Text, " \n")
		}
	}
	return blocks
}

// PlainText возвращает текстовую версию без разметки.
func PlainText(content string) string {
	var parts []string
	for _, b := range Blocks(content) {
		switch b.Kind {
		case BlockRule:
			parts = append(parts, "---")
		case BlockListItem:
			parts = append(parts, strings.Repeat("  ", max(b.Level-1, 0))+"- "+b.Text())
		default:
			if s := b.Text(); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}
