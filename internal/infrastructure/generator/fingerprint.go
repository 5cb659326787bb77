package generator

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a stable, non-cryptographic digest of the generation inputs.
// Each field is length-prefixed so no choice of separator inside a field can
// make two different inputs hash the same bytes.
func Fingerprint(name, birthDate string, story *string) string {
	s := ""
	if story != nil {
		s = *story
	}

	d := xxhash.New()
	var n [8]byte
	for _, field := range []string{name, birthDate, s} {
		binary.BigEndian.PutUint64(n[:], uint64(len(field)))
		_, _ = d.Write(n[:])
		_, _ = d.WriteString(field)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

func (in Input) Fingerprint() string {
	return Fingerprint(in.Name, in.BirthDate, in.Story)
}
