package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	check "gopkg.in/check.v1"

	"github.com/mycok/docsync/document"
)

var _ = check.Suite(new(extractorTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type extractorTestSuite struct {
	dir string
	x   *ByExtension
}

func (s *extractorTestSuite) SetUpTest(c *check.C) {
	s.dir = c.MkDir()
	s.x = New()
}

func (s *extractorTestSuite) writeFile(c *check.C, name string, data []byte) string {
	path := filepath.Join(s.dir, name)
	c.Assert(os.WriteFile(path, data, 0o644), check.IsNil)

	return path
}

func (s *extractorTestSuite) TestPlainText(c *check.C) {
	path := s.writeFile(c, "a.txt", []byte("  hello world \n"))

	res, err := s.x.Extract(context.TODO(), path)
	c.Assert(err, check.IsNil)
	c.Assert(res, check.DeepEquals, Result{Content: "hello world"})
}

func (s *extractorTestSuite) TestMarkdownHeadingBecomesTitle(c *check.C) {
	path := s.writeFile(c, "notes.MD", []byte("# Release notes\n\nAll good.\n"))

	res, err := s.x.Extract(context.TODO(), path)
	c.Assert(err, check.IsNil)
	c.Assert(res.Title, check.Equals, "Release notes")
	c.Assert(res.Content, check.Equals, "# Release notes\n\nAll good.")
}

func (s *extractorTestSuite) TestEmptyFileYieldsEmptyResult(c *check.C) {
	path := s.writeFile(c, "empty.txt", nil)

	res, err := s.x.Extract(context.TODO(), path)
	c.Assert(err, check.IsNil)
	c.Assert(res.IsEmpty(), check.Equals, true)
}

func (s *extractorTestSuite) TestBinaryContentIsExtractionError(c *check.C) {
	path := s.writeFile(c, "blob.bin", []byte{0x7f, 'E', 'L', 'F', 0x00, 0x01})

	_, err := s.x.Extract(context.TODO(), path)
	c.Assert(document.KindOf(err), check.Equals, document.KindExtraction)
}

func (s *extractorTestSuite) TestMissingFileIsExtractionError(c *check.C) {
	_, err := s.x.Extract(context.TODO(), filepath.Join(s.dir, "nope.txt"))
	c.Assert(document.KindOf(err), check.Equals, document.KindExtraction)
}

func (s *extractorTestSuite) TestOversizedFileIsExtractionError(c *check.C) {
	exact := s.writeFile(c, "exact.txt", []byte("0123456789"))
	over := s.writeFile(c, "over.html", []byte("<p>0123456789</p>"))

	res, err := NewPlainText(10).Extract(context.TODO(), exact)
	c.Assert(err, check.IsNil)
	c.Assert(res.Content, check.Equals, "0123456789")

	_, err = NewPlainText(9).Extract(context.TODO(), exact)
	c.Assert(errors.Is(err, ErrTooLarge), check.Equals, true, check.Commentf("%v", err))
	c.Assert(document.KindOf(err), check.Equals, document.KindExtraction)

	_, err = NewHTML(10).Extract(context.TODO(), over)
	c.Assert(errors.Is(err, ErrTooLarge), check.Equals, true, check.Commentf("%v", err))
	c.Assert(document.KindOf(err), check.Equals, document.KindExtraction)
}

func (s *extractorTestSuite) TestHTML(c *check.C) {
	content := `<html>
<head>
<title>Quarterly   report</title>
<meta name="author" content="Ann &amp; Bob">
</head>
<body>
<div>Some<span> content</span> rock &amp; roll</div>
<script>var x = 1;</script>
</body>
</html>
`
	path := s.writeFile(c, "report.html", []byte(content))

	res, err := s.x.Extract(context.TODO(), path)
	c.Assert(err, check.IsNil)
	c.Assert(res.Title, check.Equals, "Quarterly report")
	c.Assert(res.Author, check.Equals, "Ann & Bob")
	c.Assert(res.Content, check.Equals, "Some content rock & roll")
}

func (s *extractorTestSuite) TestCancelledContext(c *check.C) {
	path := s.writeFile(c, "a.txt", []byte("hello"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.x.Extract(ctx, path)
	c.Assert(err, check.NotNil)
}

func (s *extractorTestSuite) TestFallbackRequired(c *check.C) {
	x := NewByExtension(nil)
	x.Register(".txt", NewPlainText(0))

	_, err := x.Extract(context.TODO(), filepath.Join(s.dir, "a.pdf"))
	c.Assert(document.KindOf(err), check.Equals, document.KindExtraction)
}
