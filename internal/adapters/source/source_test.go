package source_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/jasonherngwang/peoples-court/internal/adapters/source"
	"github.com/klauspost/compress/zstd"
	. "github.com/smartystreets/goconvey/convey"
)

func readAll(r *source.Reader) []string {
	var out []string
	for r.Scan() {
		out = append(out, r.Text())
	}
	return out
}

func TestReader(t *testing.T) {
	Convey("Given NDJSON content", t, func() {
		content := "{\"id\":\"a\"}\n{\"id\":\"b\"}\n{\"id\":\"c\"}"

		Convey("When read uncompressed", func() {
			r, err := source.NewReader(strings.NewReader(content), false)
			So(err, ShouldBeNil)
			defer r.Close()

			So(readAll(r), ShouldResemble, []string{`{"id":"a"}`, `{"id":"b"}`, `{"id":"c"}`})
			So(r.Err(), ShouldBeNil)
		})

		Convey("When written to a .zst file and opened", func() {
			var buf bytes.Buffer
			enc, err := zstd.NewWriter(&buf)
			So(err, ShouldBeNil)
			_, err = enc.Write([]byte(content))
			So(err, ShouldBeNil)
			So(enc.Close(), ShouldBeNil)

			path := filepath.Join(t.TempDir(), "RS_2024.zst")
			So(os.WriteFile(path, buf.Bytes(), 0o600), ShouldBeNil)

			r, err := source.Open(path)
			So(err, ShouldBeNil)

			So(readAll(r), ShouldHaveLength, 3)
			So(r.Err(), ShouldBeNil)
			So(r.Close(), ShouldBeNil)
		})

		Convey("When a line exceeds the maximum length", func() {
			long := strings.Repeat("x", source.MaxLineBytes+1)
			r, err := source.NewReader(strings.NewReader(`{"id":"a"}`+"\n"+long+"\n{}"), false)
			So(err, ShouldBeNil)

			Convey("Then it is yielded empty and reading continues", func() {
				So(readAll(r), ShouldResemble, []string{`{"id":"a"}`, "", "{}"})
				So(r.Err(), ShouldBeNil)
				So(r.Oversized(), ShouldEqual, 1)
			})
		})

		Convey("When a line is exactly the maximum length with a CRLF ending", func() {
			exact := strings.Repeat("y", source.MaxLineBytes)
			r, err := source.NewReader(strings.NewReader(exact+"\r\n{}\n"), false)
			So(err, ShouldBeNil)

			got := readAll(r)
			So(got, ShouldHaveLength, 2)
			So(len(got[0]), ShouldEqual, source.MaxLineBytes)
			So(got[1], ShouldEqual, "{}")
			So(r.Oversized(), ShouldEqual, 0)
		})

		Convey("When the stream fails part way through a line", func() {
			boom := errors.New("connection reset")
			in := io.MultiReader(strings.NewReader("{\"id\":\"a\"}\n{\"id\":"), iotest.ErrReader(boom))
			r, err := source.NewReader(in, false)
			So(err, ShouldBeNil)

			So(readAll(r), ShouldResemble, []string{`{"id":"a"}`})
			So(r.Err(), ShouldEqual, boom)
			So(r.Scan(), ShouldBeFalse)
		})
	})

	Convey("Given bad paths", t, func() {
		_, err := source.Open("")
		So(err, ShouldEqual, source.ErrEmptyPath)

		_, err = source.Open(filepath.Join(t.TempDir(), "missing.ndjson"))
		So(err, ShouldNotBeNil)

		So(source.IsCompressed("comments.ZST"), ShouldBeTrue)
		So(source.IsCompressed("comments.ndjson"), ShouldBeFalse)
	})
}
