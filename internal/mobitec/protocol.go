// internal/mobitec/protocol.go

// Package mobitec drives a Mobitec matrix sign over its RS-485 serial bus.
//
// Text is sent as printable ASCII. German umlauts and ß are spelled out
// (ä as ae, ß as ss); any other character outside ASCII shows as '?'.
package mobitec

import "strings"

// Telegram layout:
//
//	0xFF addr 0xA2 0xD0 w 0xD1 h {0xD2 x 0xD3 y 0xD4 font text...}... sum 0xFF
//
// The checksum is the low byte of the sum of every byte between the start
// marker and the checksum. Checksums that collide with the markers are
// escaped as 0xFE 0x00 (0xFE) and 0xFE 0x01 (0xFF).
const (
	markerByte = 0xFF
	escapeByte = 0xFE
	cmdText    = 0xA2
	attrWidth  = 0xD0
	attrHeight = 0xD1
	attrX      = 0xD2
	attrY      = 0xD3
	attrFont   = 0xD4
)

// TextBlock is one positioned string within a telegram.
type TextBlock struct {
	X, Y int
	Font int
	Text string
}

// EncodeText builds a text telegram for the sign at address. An empty block
// list blanks the sign.
func EncodeText(address byte, width, height int, blocks []TextBlock) []byte {
	body := []byte{address, cmdText, attrWidth, clampByte(width), attrHeight, clampByte(height)}
	for _, b := range blocks {
		body = append(body,
			attrX, clampByte(b.X),
			attrY, clampByte(b.Y),
			attrFont, clampByte(b.Font),
		)
		body = append(body, encodeChars(b.Text)...)
	}

	telegram := make([]byte, 0, len(body)+4)
	telegram = append(telegram, markerByte)
	telegram = append(telegram, body...)
	telegram = append(telegram, checksum(body)...)
	return append(telegram, markerByte)
}

func checksum(body []byte) []byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	switch sum {
	case escapeByte:
		return []byte{escapeByte, 0x00}
	case markerByte:
		return []byte{escapeByte, 0x01}
	}
	return []byte{sum}
}

var transliterations = strings.NewReplacer(
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ä", "ae", "ö", "oe", "ü", "ue",
	"ß", "ss",
)

// Transliterate spells out the characters the sign fonts lack but that
// have a conventional ASCII form.
func Transliterate(text string) string {
	return transliterations.Replace(text)
}

// encodeChars maps text to the sign's character set. Attribute codes start
// at 0xD0, so only printable ASCII goes through; the rest becomes '?'.
func encodeChars(text string) []byte {
	text = Transliterate(text)
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if r >= 0x20 && r < 0x7F {
			out = append(out, byte(r))
		} else {
			out = append(out, '?')
		}
	}
	return out
}

func clampByte(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > 0xCF:
		// Values from 0xD0 up would be read as attribute codes.
		return 0xCF
	}
	return byte(v)
}
