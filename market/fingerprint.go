package market

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Fingerprint is a stable hex SHA-256 over the symbol and every bar. Equal
// series always share a fingerprint.
func (s *Series) Fingerprint() string {
	h := sha256.New()
	if s == nil {
		return hex.EncodeToString(h.Sum(nil))
	}
	h.Write([]byte(s.Symbol))
	h.Write([]byte{0})

	var buf [48]byte
	for _, b := range s.Bars {
		binary.BigEndian.PutUint64(buf[0:], uint64(b.Time.UnixNano()))
		binary.BigEndian.PutUint64(buf[8:], math.Float64bits(b.Open))
		binary.BigEndian.PutUint64(buf[16:], math.Float64bits(b.High))
		binary.BigEndian.PutUint64(buf[24:], math.Float64bits(b.Low))
		binary.BigEndian.PutUint64(buf[32:], math.Float64bits(b.Close))
		binary.BigEndian.PutUint64(buf[40:], math.Float64bits(b.Volume))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
