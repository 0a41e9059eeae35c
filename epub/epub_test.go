package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narou2epub/imageproc"
	"narou2epub/logging"
	"narou2epub/model"
)

const imgSrc = "https://img.example/a"

func testBook() *Book {
	return &Book{
		WorkID:    "n0498fr",
		Title:     "テスト作品",
		Author:    "作者",
		SourceURL: "https://ncode.syosetu.com/n0498fr/",
		Total:     3,
		Chapters: []model.Chapter{
			{Index: 1, Title: "一", Section: "第一章", Body: `<p>一話</p><p><img src="` + imgSrc + `" alt="挿絵"/></p>`},
			{Index: 2, Title: "二", Section: "第一章", Body: `<p>二話</p><p><img src="https://img.example/broken"/></p>`},
			{Index: 3, Title: "", Body: `<p>三話<span class="tcy">12</span></p>`},
		},
		Images: map[string]*imageproc.Image{
			imgSrc: {Data: []byte("JPEGDATA"), MediaType: "image/jpeg", Extension: ".jpg"},
		},
		Modified: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}
}

func readZip(t *testing.T, data []byte) (names []string, files map[string]string, methods map[string]uint16) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files = map[string]string{}
	methods = map[string]uint16{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		names = append(names, f.Name)
		files[f.Name] = string(content)
		methods[f.Name] = f.Method
	}
	return names, files, methods
}

func build(t *testing.T, book *Book) ([]byte, Stats) {
	t.Helper()
	var buf bytes.Buffer
	stats, err := Build(context.Background(), book, &buf)
	require.NoError(t, err)
	return buf.Bytes(), stats
}

func TestBuildLayout(t *testing.T) {
	data, stats := build(t, testBook())
	names, files, methods := readZip(t, data)

	require.NotEmpty(t, names)
	assert.Equal(t, "mimetype", names[0])
	assert.Equal(t, "application/epub+zip", files["mimetype"])
	assert.Equal(t, uint16(zip.Store), methods["mimetype"])

	for _, name := range []string{
		"META-INF/container.xml",
		"OEBPS/content.opf",
		"OEBPS/toc.ncx",
		"OEBPS/Styles/style.css",
		"OEBPS/Text/nav.xhtml",
		"OEBPS/Text/titlepage.xhtml",
		"OEBPS/Text/ep_00001.xhtml",
		"OEBPS/Text/ep_00002.xhtml",
		"OEBPS/Text/ep_00003.xhtml",
		"OEBPS/Images/img_0001.jpg",
	} {
		assert.Contains(t, files, name)
	}
	assert.Equal(t, Stats{
		Chapters:       3,
		Images:         1,
		DroppedImages:  1,
		DroppedSources: []string{"https://img.example/broken"},
	}, stats)
}

func TestBuildVerticalMetadata(t *testing.T) {
	data, _ := build(t, testBook())
	_, files, _ := readZip(t, data)

	opf := files["OEBPS/content.opf"]
	assert.Contains(t, opf, `page-progression-direction="rtl"`)
	assert.Contains(t, opf, `<meta name="primary-writing-mode" content="vertical-rl"></meta>`)
	assert.Contains(t, opf, `<meta property="dcterms:modified">2024-05-01T12:30:00Z</meta>`)
	assert.Contains(t, opf, `<dc:language>ja</dc:language>`)
	assert.Contains(t, opf, testBook().Identifier())
	assert.Contains(t, files["OEBPS/Styles/style.css"], "writing-mode: vertical-rl")

	// Spine order follows chapter order.
	i1 := strings.Index(opf, `<itemref idref="ep_00001">`)
	i2 := strings.Index(opf, `<itemref idref="ep_00002">`)
	i3 := strings.Index(opf, `<itemref idref="ep_00003">`)
	assert.True(t, i1 > 0 && i1 < i2 && i2 < i3)
}

func TestBuildChapterPages(t *testing.T) {
	data, _ := build(t, testBook())
	_, files, _ := readZip(t, data)

	first := files["OEBPS/Text/ep_00001.xhtml"]
	assert.Contains(t, first, `<p class="episode-number">#1 / 3</p>`)
	assert.Contains(t, first, `<h3 class="section">第一章</h3>`)
	assert.Contains(t, first, `src="../Images/img_0001.jpg"`)
	assert.NotContains(t, first, imgSrc)

	second := files["OEBPS/Text/ep_00002.xhtml"]
	assert.NotContains(t, second, "<img")
	assert.NotContains(t, second, `class="section"`)

	third := files["OEBPS/Text/ep_00003.xhtml"]
	assert.Contains(t, third, "<h2>第3話</h2>")
	assert.Contains(t, third, `<span class="tcy">12</span>`)

	assert.Contains(t, files["OEBPS/Text/titlepage.xhtml"], `<a href="ep_00003.xhtml">第3話</a>`)
	assert.Contains(t, files["OEBPS/toc.ncx"], `<content src="Text/ep_00002.xhtml"></content>`)
}

func TestBuildMatchesPaddedImageSource(t *testing.T) {
	book := testBook()
	book.Chapters[0].Body = `<p><img src="  ` + imgSrc + `
"/></p>`
	data, stats := build(t, book)
	_, files, _ := readZip(t, data)

	assert.Equal(t, 1, stats.Images)
	assert.Equal(t, []string{"https://img.example/broken"}, stats.DroppedSources)
	assert.Contains(t, files["OEBPS/Text/ep_00001.xhtml"], `src="../Images/img_0001.jpg"`)
}

func TestBuildIsDeterministic(t *testing.T) {
	a, _ := build(t, testBook())
	b, _ := build(t, testBook())
	assert.Equal(t, a, b)
}

func TestBuildRejectsEmptyBook(t *testing.T) {
	book := testBook()
	book.Chapters = nil

	_, err := Build(context.Background(), book, io.Discard)
	var asmErr *model.AssemblyError
	require.ErrorAs(t, err, &asmErr)
	assert.True(t, errors.Is(err, model.ErrEmptyBook))
}

func TestBuildRejectsUnorderedChapters(t *testing.T) {
	book := testBook()
	book.Chapters[0], book.Chapters[1] = book.Chapters[1], book.Chapters[0]

	_, err := Build(context.Background(), book, io.Discard)
	var asmErr *model.AssemblyError
	assert.ErrorAs(t, err, &asmErr)
}

func TestAssembleWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	a := NewAssembler(dir, logging.NewNop())

	res, err := a.Assemble(context.Background(), testBook())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "テスト作品(n0498fr)_1-3.epub"), res.Path)
	info, err := os.Stat(res.Path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), res.Size)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAssembleFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir, logging.NewNop())
	book := testBook()
	book.Chapters = nil

	_, err := a.Assemble(context.Background(), book)
	var asmErr *model.AssemblyError
	require.ErrorAs(t, err, &asmErr)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssembleCancelledLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Assemble(ctx, testBook())
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "ab(n1234ab)_2-9.epub", FileName("a/b?", "n1234ab", 2, 9))
}

func TestIdentifierIsStable(t *testing.T) {
	a := (&Book{SourceURL: "https://ncode.syosetu.com/n0498fr/"}).Identifier()
	b := (&Book{SourceURL: "https://ncode.syosetu.com/n0498fr/"}).Identifier()
	c := (&Book{SourceURL: "https://ncode.syosetu.com/n0000aa/"}).Identifier()
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "urn:uuid:"))
}
