package docparser

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <w:body>
    <w:p><w:r><w:t>Чтобы войти, откройте </w:t></w:r><w:r><w:t>страницу входа.</w:t></w:r></w:p>
    <w:p><w:r><w:drawing><a:graphic><a:graphicData><a:blip r:embed="rId5"/></a:graphicData></a:graphic></w:drawing></w:r></w:p>
    <w:p><w:r><w:t>   </w:t></w:r></w:p>
    <w:p><w:r><w:t>Отчёты находятся в меню.</w:t></w:r><w:r><w:drawing><a:blip r:embed="rId6"/></w:drawing></w:r></w:p>
    <w:p><w:r><w:drawing><a:blip r:embed="rId404"/></w:drawing></w:r></w:p>
  </w:body>
</w:document>`

const testRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
  <Relationship Id="rId6" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="/word/media/image2.jpeg"/>
</Relationships>`

func buildDocx(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParse(t *testing.T) {
	imagesDir := filepath.Join(t.TempDir(), "images")
	raw := buildDocx(t, map[string]string{
		"word/document.xml":            testDocument,
		"word/_rels/document.xml.rels": testRels,
		"word/media/image1.png":        "png-bytes",
		"word/media/image2.jpeg":       "jpeg-bytes",
	})

	elements, err := Parse(bytes.NewReader(raw), int64(len(raw)), imagesDir)
	require.NoError(t, err)

	img1 := filepath.Join(imagesDir, "image1.png")
	img2 := filepath.Join(imagesDir, "image2.jpeg")
	assert.Equal(t, []Element{
		{Type: ElementText, Content: "Чтобы войти, откройте страницу входа."},
		{Type: ElementImage, Content: img1},
		{Type: ElementText, Content: "Отчёты находятся в меню."},
		{Type: ElementImage, Content: img2},
	}, elements)

	data, err := os.ReadFile(img1)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestParseMissingDocument(t *testing.T) {
	raw := buildDocx(t, map[string]string{"word/media/image1.png": "x"})
	_, err := Parse(bytes.NewReader(raw), int64(len(raw)), t.TempDir())
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.docx")
	require.NoError(t, os.WriteFile(path, buildDocx(t, map[string]string{
		"word/document.xml": testDocument,
	}), 0o644))

	elements, err := ParseFile(path, filepath.Join(dir, "images"))
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, ElementText, elements[0].Type)
	assert.Equal(t, ElementText, elements[1].Type)
}
