package compliq

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"
)

// decodeChunkSize bounds how much base64 input is consumed per read so
// a large attachment never triggers a single oversized decode step.
const decodeChunkSize = 1024

// DecodeBase64 decodes s into raw bytes, reading in fixed-size
// segments. The caller owns the returned slice. Invalid input yields a
// DecodeError.
func DecodeBase64(s string) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(base64.StdEncoding.DecodedLen(len(s)))

	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(s))
	buf := make([]byte, decodeChunkSize)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
	}
	return out.Bytes(), nil
}
