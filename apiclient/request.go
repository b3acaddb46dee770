package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Request describes a single gateway call. Path is resolved against the
// client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is encoded as JSON. Ignored when Form or Multipart is set.
	Body any
	// Form is sent as application/x-www-form-urlencoded.
	Form      url.Values
	Multipart *Multipart
	Header    http.Header
	// SkipRefresh disables the 401 refresh-and-replay behaviour. Refresh
	// calls themselves use it.
	SkipRefresh bool
}

// Multipart is a multipart/form-data payload.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

// FilePart is one file in a multipart payload. Content wins over Path.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Path        string
	Content     []byte
}

func (m *Multipart) empty() bool {
	return m == nil || (len(m.Fields) == 0 && len(m.Files) == 0)
}

// encodedBody produces a fresh reader for every attempt so the request can be
// replayed after a token refresh.
type encodedBody struct {
	contentType string
	raw         []byte
	multipart   *Multipart
}

func encodeBody(r *Request) (*encodedBody, error) {
	if r.Multipart != nil {
		if err := statFiles(r.Multipart); err != nil {
			return nil, &Error{Kind: KindUnknown, Message: "could not read upload file", Err: err}
		}
		return &encodedBody{multipart: r.Multipart}, nil
	}
	if r.Form != nil {
		return &encodedBody{contentType: "application/x-www-form-urlencoded", raw: []byte(r.Form.Encode())}, nil
	}
	if r.Body == nil {
		return &encodedBody{}, nil
	}
	b, err := json.Marshal(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[encodeBody] marshal request body")
	}
	return &encodedBody{contentType: "application/json", raw: b}, nil
}

// reader returns the body reader and its content type.
func (e *encodedBody) reader() (io.Reader, string) {
	switch {
	case e.multipart != nil:
		return streamMultipart(e.multipart)
	case e.raw != nil:
		return bytes.NewReader(e.raw), e.contentType
	default:
		return nil, ""
	}
}

// statFiles checks that every path-backed file can be read before anything is
// sent.
func statFiles(m *Multipart) error {
	for _, f := range m.Files {
		if f.Content != nil || f.Path == "" {
			continue
		}
		info, err := os.Stat(f.Path)
		if err != nil {
			return errors.Wrapf(err, "[statFiles] %s", f.Field)
		}
		if info.IsDir() {
			return errors.Errorf("[statFiles] %s: %s is a directory", f.Field, f.Path)
		}
	}
	return nil
}

// multipartStream is the reading end of a streamed multipart body. It keeps
// the writer's error so local failures are not mistaken for network ones.
type multipartStream struct {
	*io.PipeReader
	mu  sync.Mutex
	err error
}

func (s *multipartStream) writeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// streamMultipart writes m through a pipe so files are never fully buffered.
func streamMultipart(m *Multipart) (*multipartStream, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	stream := &multipartStream{PipeReader: pr}

	go func() {
		err := writeMultipart(mw, m)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		if err != nil && !errors.Is(err, io.ErrClosedPipe) {
			stream.mu.Lock()
			stream.err = err
			stream.mu.Unlock()
		}
		pw.CloseWithError(err)
	}()
	return stream, mw.FormDataContentType()
}

func writeMultipart(mw *multipart.Writer, m *Multipart) error {
	for name, value := range m.Fields {
		if err := mw.WriteField(name, value); err != nil {
			return errors.Wrapf(err, "[writeMultipart] field %s", name)
		}
	}
	for _, f := range m.Files {
		if err := writeFilePart(mw, f); err != nil {
			return err
		}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(mw *multipart.Writer, f FilePart) error {
	name := f.FileName
	if name == "" && f.Path != "" {
		name = filepath.Base(f.Path)
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(f.Field), quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return errors.Wrapf(err, "[writeFilePart] create part %s", f.Field)
	}

	if f.Content != nil || f.Path == "" {
		_, err = part.Write(f.Content)
		return errors.Wrapf(err, "[writeFilePart] write %s", f.Field)
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return errors.Wrapf(err, "[writeFilePart] open %s", f.Path)
	}
	defer file.Close()
	_, err = io.Copy(part, file)
	return errors.Wrapf(err, "[writeFilePart] copy %s", f.Path)
}
