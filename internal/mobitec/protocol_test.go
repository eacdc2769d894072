package mobitec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeText(t *testing.T) {
	got := EncodeText(6, 144, 16, []TextBlock{{X: 0, Y: 15, Font: 65, Text: "Hi"}})

	body := []byte{6, 0xA2, 0xD0, 144, 0xD1, 16, 0xD2, 0, 0xD3, 15, 0xD4, 65, 'H', 'i'}
	var sum byte
	for _, b := range body {
		sum += b
	}
	want := append([]byte{0xFF}, body...)
	want = append(want, sum, 0xFF)

	assert.Equal(t, want, got)
}

func TestEncodeText_Blank(t *testing.T) {
	got := EncodeText(6, 144, 16, nil)
	assert.Equal(t, byte(0xFF), got[0])
	assert.Equal(t, byte(0xFF), got[len(got)-1])
	assert.Len(t, got, 1+6+1+1)
}

func TestChecksumEscaping(t *testing.T) {
	assert.Equal(t, []byte{0xFE, 0x00}, checksum([]byte{0xFE}))
	assert.Equal(t, []byte{0xFE, 0x01}, checksum([]byte{0xF0, 0x0F}))
	assert.Equal(t, []byte{0x10}, checksum([]byte{0x08, 0x08}))
	// Wraps modulo 256.
	assert.Equal(t, []byte{0x01}, checksum([]byte{0xFF, 0x02}))
}

func TestEncodeChars(t *testing.T) {
	assert.Equal(t, []byte("CO2 ok?"), encodeChars("CO2 ok✓"))
	assert.Equal(t, []byte("Gruesse"), encodeChars("Grüße"))
	assert.Equal(t, []byte("Tuer offen, Kueche 22?C"), encodeChars("Tür offen, Küche 22°C"))
}

func TestTransliterate(t *testing.T) {
	assert.Equal(t, "AeOeUe aeoeue ss", Transliterate("ÄÖÜ äöü ß"))
	assert.Equal(t, "plain", Transliterate("plain"))
}

func TestClampByte(t *testing.T) {
	assert.Equal(t, byte(0), clampByte(-4))
	assert.Equal(t, byte(0xCF), clampByte(300))
	assert.Equal(t, byte(97), clampByte(97))
}
