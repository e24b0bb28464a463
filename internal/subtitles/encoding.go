package subtitles

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"vsub/internal/services"
)

type outputEncoding struct {
	name   string
	isUTF8 bool
	enc    encoding.Encoding
}

func lookupEncoding(label string) (outputEncoding, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "utf-8" || label == "utf8" {
		return outputEncoding{name: "utf-8", isUTF8: true}, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return outputEncoding{}, services.Wrap(services.ErrConfiguration, "format", "resolve encoding", label, err)
	}
	name, _ := htmlindex.Name(enc)
	if name == "utf-8" {
		return outputEncoding{name: name, isUTF8: true}, nil
	}
	return outputEncoding{name: name, enc: enc}, nil
}

// check reports the first rune of e the encoding cannot represent.
func (o outputEncoding) check(e Entry) error {
	if err := checkUTF8(e); err != nil {
		return err
	}
	encoder := o.enc.NewEncoder()
	for _, r := range e.Text {
		if _, err := encoder.String(string(r)); err != nil {
			return services.Wrap(services.ErrEncoding, "format", "encode",
				fmt.Sprintf("cue %d: %q (U+%04X) is not representable in %s", e.Sequence, r, r, o.name), err)
		}
	}
	return nil
}

func (o outputEncoding) encode(doc string) ([]byte, error) {
	out, err := o.enc.NewEncoder().Bytes([]byte(doc))
	if err != nil {
		return nil, services.Wrap(services.ErrEncoding, "format", "encode", "document is not representable in "+o.name, err)
	}
	return out, nil
}

func checkUTF8(e Entry) error {
	if !utf8.ValidString(e.Text) {
		return services.Wrap(services.ErrEncoding, "format", "encode", fmt.Sprintf("cue %d contains invalid UTF-8", e.Sequence), nil)
	}
	return nil
}
